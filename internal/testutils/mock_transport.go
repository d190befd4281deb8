package testutils

import (
	"context"
	"sync/atomic"

	"github.com/srg/blegatt/internal/device"
	"github.com/stretchr/testify/mock"
)

// MockTransport is a device.Transport whose commands are recorded with testify/mock
// and whose attribute lookups are served from a mocked Profile. It never raises
// events on its own: tests feed them through Emit or Device.Dispatch.
//
// Every command is registered as an optional expectation, so tests assert on
// what was issued with AssertCalled / AssertNotCalled / AssertNumberOfCalls.
type MockTransport struct {
	mock.Mock

	Profile *Profile
	Payload int // returned by MaxWritePayloadSize

	connected atomic.Bool
	events    chan device.Event
}

var _ device.Transport = (*MockTransport)(nil)

// NewMockTransport creates a disconnected transport serving profile
func NewMockTransport(profile *Profile) *MockTransport {
	if profile == nil {
		profile = &Profile{}
	}
	m := &MockTransport{
		Profile: profile,
		Payload: 20,
		events:  make(chan device.Event, 64),
	}
	for _, method := range []string{"Connect", "DiscoverServices", "DiscoverDescriptors", "ReadCharacteristic", "ReadDescriptor"} {
		m.On(method, mock.Anything).Return().Maybe()
	}
	m.On("ReadRSSI").Return().Maybe()
	m.On("Disconnect").Return().Maybe()
	m.On("DiscoverCharacteristics", mock.Anything, mock.Anything).Return().Maybe()
	m.On("WriteCharacteristic", mock.Anything, mock.Anything, mock.Anything).Return().Maybe()
	m.On("WriteDescriptor", mock.Anything, mock.Anything).Return().Maybe()
	m.On("SetNotify", mock.Anything, mock.Anything).Return().Maybe()
	return m
}

// SetConnected sets the link state reported by IsConnected
func (m *MockTransport) SetConnected(connected bool) {
	m.connected.Store(connected)
}

// Emit queues an event for Events readers
func (m *MockTransport) Emit(ev device.Event) {
	m.events <- ev
}

// Close closes the event channel
func (m *MockTransport) Close() {
	close(m.events)
}

func (m *MockTransport) Connect(ctx context.Context) { m.Called(ctx) }

func (m *MockTransport) Disconnect() { m.Called() }

func (m *MockTransport) IsConnected() bool { return m.connected.Load() }

func (m *MockTransport) DiscoverServices(serviceUUIDs []string) { m.Called(serviceUUIDs) }

func (m *MockTransport) DiscoverCharacteristics(serviceUUID string, charUUIDs []string) {
	m.Called(serviceUUID, charUUIDs)
}

func (m *MockTransport) DiscoverDescriptors(c device.Characteristic) { m.Called(c) }

func (m *MockTransport) ReadCharacteristic(c device.Characteristic) { m.Called(c) }

func (m *MockTransport) WriteCharacteristic(c device.Characteristic, data []byte, mode device.WriteMode) {
	m.Called(c, data, mode)
}

func (m *MockTransport) ReadDescriptor(d device.Descriptor) { m.Called(d) }

func (m *MockTransport) WriteDescriptor(d device.Descriptor, data []byte) { m.Called(d, data) }

func (m *MockTransport) SetNotify(c device.Characteristic, enable bool) { m.Called(c, enable) }

func (m *MockTransport) ReadRSSI() { m.Called() }

func (m *MockTransport) MaxWritePayloadSize(device.WriteMode) int { return m.Payload }

func (m *MockTransport) Services() []device.Service { return m.Profile.Services() }

func (m *MockTransport) GetService(uuid string) (device.Service, bool) {
	return m.Profile.GetService(uuid)
}

func (m *MockTransport) GetCharacteristic(service, uuid string) (device.Characteristic, bool) {
	return m.Profile.GetCharacteristic(service, uuid)
}

func (m *MockTransport) GetDescriptor(service, characteristic, uuid string) (device.Descriptor, bool) {
	return m.Profile.GetDescriptor(service, characteristic, uuid)
}

func (m *MockTransport) Events() <-chan device.Event { return m.events }
