//go:build test

package testutils

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blegatt/internal/device"
	"github.com/stretchr/testify/suite"
)

// MockPeripheralSuite provides a reusable test suite driving a device.Device
// over a MockTransport with a FakeClock. Events are fed synchronously through
// Device.Dispatch and deadlines fire only on Clock.Advance, so every scenario
// is deterministic.
//
// Basic usage (default battery service, connected link):
//
//	type SimpleSuite struct {
//	    testutils.MockPeripheralSuite
//	}
//
//	func TestSimpleSuite(t *testing.T) {
//	    suite.Run(t, new(SimpleSuite))
//	}
//
// Custom profile usage:
//
//	func (s *InspectSuite) SetupTest() {
//	    s.WithPeripheral().
//	        WithService("180D").
//	        WithCharacteristic("2A37", "read,notify", []byte{80})
//
//	    s.MockPeripheralSuite.SetupTest() // Call parent last to apply configuration
//	}
type MockPeripheralSuite struct {
	suite.Suite

	// Core test utilities
	Helper *TestHelper
	Logger *logrus.Logger

	// Default deadline used by scenarios
	TestTimeout time.Duration

	PeripheralBuilder *PeripheralDeviceBuilder
	Clock             *FakeClock
	Transport         *MockTransport
	Device            *device.Device
}

// SetupSuite initializes the test suite. Called once before all tests in the suite.
func (s *MockPeripheralSuite) SetupSuite() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger
	s.TestTimeout = 5 * time.Second
	s.Logger.Debug("Suite setup completed")
}

// SetupTest builds a fresh transport, clock and device before each test.
func (s *MockPeripheralSuite) SetupTest() {
	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = createDefaultPeripheralBuilder()
	}

	s.resetDevice()
	s.Logger.Debug("Test setup completed - ready for execution")
}

// SetupSubTest gives every s.Run subtest its own transport, clock and device
// over the profile configured for the enclosing test.
func (s *MockPeripheralSuite) SetupSubTest() {
	s.resetDevice()
}

func (s *MockPeripheralSuite) resetDevice() {
	s.Clock = NewFakeClock()
	s.Transport = NewMockTransport(s.PeripheralBuilder.Build())
	s.Transport.SetConnected(true)
	s.Device = device.New(s.Transport, &device.Options{
		Clock:  s.Clock,
		Logger: s.Logger,
	})
}

// TearDownTest resets the peripheral builder after each test.
func (s *MockPeripheralSuite) TearDownTest() {
	s.PeripheralBuilder = nil
}

// WithPeripheral returns the peripheral builder for fluent configuration.
// Use this method to configure custom profiles before calling SetupTest.
func (s *MockPeripheralSuite) WithPeripheral() *PeripheralDeviceBuilder {
	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = NewPeripheralDeviceBuilder()
	}

	s.Logger.Debug("Peripheral configuration started")
	return s.PeripheralBuilder
}

// RequireSingleResult asserts that exactly one completion was delivered and returns it.
func (s *MockPeripheralSuite) RequireSingleResult(results *[]device.Result) device.Result {
	s.Require().Len(*results, 1, "callback MUST be invoked exactly once")
	return (*results)[0]
}

// createDefaultPeripheralBuilder returns a peripheral with the Battery Service (180F)
// and a readable, notifying Battery Level characteristic (2A19) set to 50%.
func createDefaultPeripheralBuilder() *PeripheralDeviceBuilder {
	return NewPeripheralDeviceBuilder().
		FromJSON(`
		{
			"services": [
				{
					"uuid": "180F",
					"characteristics": [
						{ "uuid": "2A19", "properties": "read,notify", "value": [50], "descriptors": ["2902"] }
					]
				}
			]
		}`)
}
