package ringchan

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingChannel_OverwritesOldest(t *testing.T) {
	rc := New[int](3)
	for i := 0; i < 10; i++ {
		rc.Send(i)
	}

	assert.Equal(t, 3, rc.Len())
	var got []int
	for rc.Len() > 0 {
		v, ok := rc.Receive(context.Background())
		require.True(t, ok)
		got = append(got, v)
	}
	assert.Equal(t, []int{7, 8, 9}, got)
	assert.Equal(t, Stats{Written: 10, Overwritten: 7, Received: 3}, rc.Stats())
}

func TestRingChannel_SendReportsDrop(t *testing.T) {
	rc := New[string](1)
	assert.False(t, rc.Send("a"))
	assert.True(t, rc.Send("b"))
	assert.Equal(t, "b", <-rc.C())
}

func TestRingChannel_Close(t *testing.T) {
	rc := New[int](2)
	rc.Send(1)
	rc.Close()
	rc.Close()

	assert.False(t, rc.Send(2), "send after close MUST be a no-op")
	v, ok := rc.Receive(context.Background())
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = rc.Receive(context.Background())
	assert.False(t, ok)
}

func TestRingChannel_ReceiveHonorsContext(t *testing.T) {
	rc := New[int](1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok := rc.Receive(ctx)
	assert.False(t, ok)
}

func TestRingChannel_ConcurrentProducersNeverBlock(t *testing.T) {
	// GOAL: Verify producers never block on a full buffer with no consumer
	//
	// TEST SCENARIO: 8 producers send 1000 values each into capacity 4 → all return → buffer full
	rc := New[int](4)
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				rc.Send(i)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("producers blocked")
	}
	assert.Equal(t, 4, rc.Len())
	stats := rc.Stats()
	assert.Equal(t, int64(8000), stats.Written)
	assert.Equal(t, int64(7996), stats.Overwritten)
}
