package device_test

import (
	"testing"
	"time"

	"github.com/srg/blegatt/internal/device"
	"github.com/srg/blegatt/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingTable(t *testing.T) (*device.PendingTable, *testutils.FakeClock) {
	clock := testutils.NewFakeClock()
	return device.NewPendingTable(clock, testutils.NewTestHelper(t).Logger), clock
}

func TestPendingTable_Resolve(t *testing.T) {
	key := device.NewKey(device.OpRead, "180f", "2a19")

	t.Run("resolve delivers once and cancels the deadline", func(t *testing.T) {
		// GOAL: Verify an event that beats the deadline is the only completion
		//
		// TEST SCENARIO: Register with 5s deadline → resolve → advance past deadline → one success only
		table, clock := newPendingTable(t)
		cb, results := testutils.CaptureResults()

		table.Register(key, cb, 5*time.Second)
		require.Equal(t, 1, clock.Armed())

		assert.True(t, table.Resolve(key, "32"))
		clock.Advance(10 * time.Second)

		require.Len(t, *results, 1)
		assert.True(t, (*results)[0].Success())
		assert.Equal(t, "32", (*results)[0].Value)
		assert.Equal(t, 0, clock.Armed())
		assert.False(t, table.IsPending(key))
	})

	t.Run("deadline rejects with the timeout message", func(t *testing.T) {
		// GOAL: Verify an unanswered operation fails with its timeout message
		//
		// TEST SCENARIO: Register write with 5s deadline → advance 5s → "Write timeout." → late event is a no-op
		table, clock := newPendingTable(t)
		cb, results := testutils.CaptureResults()
		writeKey := device.NewKey(device.OpWrite, "180f", "2a19")

		table.Register(writeKey, cb, 5*time.Second)
		clock.Advance(4 * time.Second)
		assert.Empty(t, *results, "MUST NOT fire before the deadline")

		clock.Advance(time.Second)
		require.Len(t, *results, 1)
		assert.ErrorIs(t, (*results)[0].Err, device.ErrTimeout)
		assert.Equal(t, "Write timeout.", (*results)[0].Message())

		assert.False(t, table.Resolve(writeKey, "late"))
		assert.Len(t, *results, 1)
	})

	t.Run("completing an unknown key is a no-op", func(t *testing.T) {
		table, _ := newPendingTable(t)
		assert.False(t, table.Resolve(key, "x"))
		assert.False(t, table.Reject(key, device.ErrTransport))
	})

	t.Run("zero timeout arms no deadline", func(t *testing.T) {
		table, clock := newPendingTable(t)
		cb, results := testutils.CaptureResults()

		table.Register(key, cb, 0)
		assert.Equal(t, 0, clock.Armed())
		clock.Advance(time.Hour)
		assert.Empty(t, *results)
		assert.True(t, table.IsPending(key))
	})
}

func TestPendingTable_Supersede(t *testing.T) {
	key := device.NewKey(device.OpRead, "180f", "2a19")

	// GOAL: Verify a second registration under one key supersedes the first
	//
	// TEST SCENARIO: Register A (5s) → register B (10s) → A rejected Superseded → A's deadline passes
	// without touching B → B resolves normally
	table, clock := newPendingTable(t)
	cbA, resultsA := testutils.CaptureResults()
	cbB, resultsB := testutils.CaptureResults()

	table.Register(key, cbA, 5*time.Second)
	table.Register(key, cbB, 10*time.Second)

	require.Len(t, *resultsA, 1)
	assert.ErrorIs(t, (*resultsA)[0].Err, device.ErrSuperseded)

	clock.Advance(6 * time.Second)
	assert.Empty(t, *resultsB, "stale deadline MUST NOT complete the newer entry")
	assert.True(t, table.IsPending(key))

	table.Resolve(key, "ok")
	require.Len(t, *resultsB, 1)
	assert.Equal(t, "ok", (*resultsB)[0].Value)
	assert.Len(t, *resultsA, 1)
}

func TestPendingTable_RejectAll(t *testing.T) {
	table, clock := newPendingTable(t)
	cb1, r1 := testutils.CaptureResults()
	cb2, r2 := testutils.CaptureResults()

	table.Register(device.NewKey(device.OpRead, "180f", "2a19"), cb1, time.Second)
	table.Register(device.NewKey(device.OpReadRSSI), cb2, time.Second)

	n := table.RejectAll(func(device.Key) error { return device.ErrDisconnected })
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, table.Len())

	clock.Advance(2 * time.Second)
	require.Len(t, *r1, 1)
	require.Len(t, *r2, 1)
	assert.ErrorIs(t, (*r1)[0].Err, device.ErrDisconnected)
	assert.ErrorIs(t, (*r2)[0].Err, device.ErrDisconnected)
}

func TestPendingTable_Notifier(t *testing.T) {
	key := device.NewKey(device.OpNotification, "180d", "2a37")

	// GOAL: Verify notification handlers persist across deliveries until removed
	//
	// TEST SCENARIO: Set handler → notify twice → both delivered → remove → notify not delivered
	table, _ := newPendingTable(t)
	h, results := testutils.CaptureResults()

	assert.False(t, table.Notify(key, device.Result{Value: "00"}), "no handler yet")

	table.SetNotifier(key, device.NotifyHandler(h))
	assert.True(t, table.Notify(key, device.Result{Value: "00 4b"}))
	assert.True(t, table.Notify(key, device.Result{Value: "00 4c"}))

	table.RemoveNotifier(key)
	assert.False(t, table.Notify(key, device.Result{Value: "00 4d"}))

	require.Len(t, *results, 2)
	assert.Equal(t, "00 4b", (*results)[0].Value)
	assert.Equal(t, "00 4c", (*results)[1].Value)
	assert.Equal(t, 0, table.Len(), "notifiers are not pending operations")
}
