package device_test

import (
	"testing"

	"github.com/srg/blegatt/internal/device"
	"github.com/srg/blegatt/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// twoServiceProfile has N=2 services with C=[1,2] characteristics
func twoServiceProfile() *testutils.Profile {
	return testutils.CreateMockPeripheralDevice().
		WithService("180F").
		WithCharacteristic("2A19", "read,notify", []byte{50}).
		WithService("180D").
		WithCharacteristic("2A37", "notify", nil, "2902").
		WithCharacteristic("2A38", "read", []byte{1}).
		Build()
}

func TestSequencer_FullDiscovery(t *testing.T) {
	helper := testutils.NewTestHelper(t)

	t.Run("completes only after every characteristic reports descriptors", func(t *testing.T) {
		// GOAL: Verify the completion threshold of full discovery
		//
		// TEST SCENARIO: N=2 services, C=[1,2] → services event → two characteristic events → two
		// descriptor events do not complete → third descriptor event completes exactly once
		transport := testutils.NewMockTransport(twoServiceProfile())
		seq := device.NewSequencer(transport, helper.Logger)

		seq.BeginFull()
		transport.AssertCalled(t, "DiscoverServices", []string(nil))
		assert.Equal(t, device.PhaseServicesRequested, seq.State().Phase)

		assert.Empty(t, seq.HandleServices(device.ServicesDiscovered{}))
		transport.AssertNumberOfCalls(t, "DiscoverCharacteristics", 2)
		assert.Equal(t, 2, seq.State().ServicesExpected)

		assert.Empty(t, seq.HandleCharacteristics(device.CharacteristicsDiscovered{Service: "180f"}))
		assert.Empty(t, seq.HandleCharacteristics(device.CharacteristicsDiscovered{Service: "180d"}))
		transport.AssertNumberOfCalls(t, "DiscoverDescriptors", 3)

		state := seq.State()
		assert.Equal(t, device.PhaseDescriptorsPending, state.Phase)
		assert.Equal(t, 2, state.ServicesCompleted)
		assert.Equal(t, 3, state.CharacteristicsExpected)

		assert.Empty(t, seq.HandleDescriptors(device.DescriptorsDiscovered{Service: "180f", Characteristic: "2a19"}))
		assert.Empty(t, seq.HandleDescriptors(device.DescriptorsDiscovered{Service: "180d", Characteristic: "2a37"}))

		outcomes := seq.HandleDescriptors(device.DescriptorsDiscovered{Service: "180d", Characteristic: "2a38"})
		require.Len(t, outcomes, 1)
		assert.Equal(t, device.Key{}, outcomes[0].Target)
		assert.NoError(t, outcomes[0].Err)
		assert.Equal(t, device.PhaseComplete, seq.State().Phase)

		assert.Empty(t, seq.HandleDescriptors(device.DescriptorsDiscovered{Service: "180d", Characteristic: "2a38"}),
			"completion MUST be reported once")
	})

	t.Run("peripheral without services completes immediately", func(t *testing.T) {
		transport := testutils.NewMockTransport(nil)
		seq := device.NewSequencer(transport, helper.Logger)

		seq.BeginFull()
		outcomes := seq.HandleServices(device.ServicesDiscovered{})
		require.Len(t, outcomes, 1)
		assert.NoError(t, outcomes[0].Err)
		transport.AssertNotCalled(t, "DiscoverCharacteristics", mock.Anything, mock.Anything)
	})

	t.Run("service discovery error fails the workflow", func(t *testing.T) {
		transport := testutils.NewMockTransport(twoServiceProfile())
		seq := device.NewSequencer(transport, helper.Logger)

		seq.BeginFull()
		outcomes := seq.HandleServices(device.ServicesDiscovered{Err: assert.AnError})
		require.Len(t, outcomes, 1)
		assert.ErrorIs(t, outcomes[0].Err, assert.AnError)
		assert.Equal(t, device.PhaseFailed, seq.State().Phase)
	})

	t.Run("descriptor discovery error still counts as completed", func(t *testing.T) {
		transport := testutils.NewMockTransport(testutils.CreateMockPeripheralDevice().
			WithService("180F").
			WithCharacteristic("2A19", "read", nil).
			Build())
		seq := device.NewSequencer(transport, helper.Logger)

		seq.BeginFull()
		seq.HandleServices(device.ServicesDiscovered{})
		seq.HandleCharacteristics(device.CharacteristicsDiscovered{Service: "180f"})
		outcomes := seq.HandleDescriptors(device.DescriptorsDiscovered{Service: "180f", Characteristic: "2a19", Err: assert.AnError})
		require.Len(t, outcomes, 1)
		assert.NoError(t, outcomes[0].Err)
	})

	t.Run("events outside a running discovery are ignored", func(t *testing.T) {
		transport := testutils.NewMockTransport(twoServiceProfile())
		seq := device.NewSequencer(transport, helper.Logger)

		assert.Empty(t, seq.HandleServices(device.ServicesDiscovered{}))
		assert.Empty(t, seq.HandleDescriptors(device.DescriptorsDiscovered{Service: "180f", Characteristic: "2a19"}))
		assert.Equal(t, device.PhaseIdle, seq.State().Phase)
	})
}

func TestSequencer_TargetedDiscovery(t *testing.T) {
	helper := testutils.NewTestHelper(t)
	key := device.NewKey(device.OpSetNotifications, "180d", "2a37")

	t.Run("walks service then characteristic then toggles notify", func(t *testing.T) {
		transport := testutils.NewMockTransport(twoServiceProfile())
		seq := device.NewSequencer(transport, helper.Logger)

		seq.BeginTargeted(key, "180D", "2A37", true)
		transport.AssertCalled(t, "DiscoverServices", []string{"180D"})

		assert.Empty(t, seq.HandleServices(device.ServicesDiscovered{Filter: []string{"180D"}}))
		transport.AssertCalled(t, "DiscoverCharacteristics", "180d", []string{"2a37"})

		assert.Empty(t, seq.HandleCharacteristics(device.CharacteristicsDiscovered{Service: "180d", Filter: []string{"2a37"}}))
		transport.AssertCalled(t, "SetNotify", mock.MatchedBy(func(c device.Characteristic) bool {
			return c.UUID() == "2a37"
		}), true)
		assert.Equal(t, device.PhaseIdle, seq.State().Phase, "targeted discovery MUST NOT touch full discovery state")
	})

	t.Run("missing service", func(t *testing.T) {
		transport := testutils.NewMockTransport(twoServiceProfile())
		seq := device.NewSequencer(transport, helper.Logger)
		missing := device.NewKey(device.OpSetNotifications, "1234", "5678")

		seq.BeginTargeted(missing, "1234", "5678", true)
		outcomes := seq.HandleServices(device.ServicesDiscovered{Filter: []string{"1234"}})
		require.Len(t, outcomes, 1)
		assert.Equal(t, missing, outcomes[0].Target)
		assert.ErrorIs(t, outcomes[0].Err, device.ErrNotFound)
		assert.Equal(t, "Service not found.", outcomes[0].Err.Error())
	})

	t.Run("missing characteristic", func(t *testing.T) {
		transport := testutils.NewMockTransport(twoServiceProfile())
		seq := device.NewSequencer(transport, helper.Logger)
		missing := device.NewKey(device.OpSetNotifications, "180d", "ffff")

		seq.BeginTargeted(missing, "180d", "ffff", false)
		seq.HandleServices(device.ServicesDiscovered{Filter: []string{"180d"}})
		outcomes := seq.HandleCharacteristics(device.CharacteristicsDiscovered{Service: "180d", Filter: []string{"ffff"}})
		require.Len(t, outcomes, 1)
		assert.Equal(t, "Characteristic not found.", outcomes[0].Err.Error())
		transport.AssertNotCalled(t, "SetNotify", mock.Anything, mock.Anything)
	})

	t.Run("concurrent targets on different characteristics do not clobber each other", func(t *testing.T) {
		// GOAL: Verify per-request discovery state
		//
		// TEST SCENARIO: Start targets for 2a37 and 2a38 in one service → one service event advances both →
		// each characteristic event toggles only its own characteristic
		transport := testutils.NewMockTransport(twoServiceProfile())
		seq := device.NewSequencer(transport, helper.Logger)
		other := device.NewKey(device.OpSetNotifications, "180d", "2a38")

		seq.BeginTargeted(key, "180d", "2a37", true)
		seq.BeginTargeted(other, "180d", "2a38", false)

		seq.HandleServices(device.ServicesDiscovered{Filter: []string{"180d"}})
		transport.AssertNumberOfCalls(t, "DiscoverCharacteristics", 2)

		seq.HandleCharacteristics(device.CharacteristicsDiscovered{Service: "180d", Filter: []string{"2a38"}})
		transport.AssertNumberOfCalls(t, "SetNotify", 1)
		transport.AssertCalled(t, "SetNotify", mock.MatchedBy(func(c device.Characteristic) bool {
			return c.UUID() == "2a38"
		}), false)

		seq.HandleCharacteristics(device.CharacteristicsDiscovered{Service: "180d", Filter: []string{"2a37"}})
		transport.AssertNumberOfCalls(t, "SetNotify", 2)
	})

	t.Run("cancelled target ignores later events", func(t *testing.T) {
		transport := testutils.NewMockTransport(twoServiceProfile())
		seq := device.NewSequencer(transport, helper.Logger)

		seq.BeginTargeted(key, "180d", "2a37", true)
		seq.Cancel(key)
		assert.Empty(t, seq.HandleServices(device.ServicesDiscovered{Filter: []string{"180d"}}))
		transport.AssertNotCalled(t, "DiscoverCharacteristics", mock.Anything, mock.Anything)
	})
}
