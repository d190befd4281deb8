package device

import "context"

// WriteMode selects acknowledged or unacknowledged characteristic writes
type WriteMode int

const (
	WithResponse WriteMode = iota
	WithoutResponse
)

func (m WriteMode) String() string {
	if m == WithoutResponse {
		return "withoutResponse"
	}
	return "withResponse"
}

// Service is a discovered GATT service
type Service interface {
	UUID() string
	GetCharacteristics() []Characteristic
}

// Characteristic is a discovered GATT characteristic
type Characteristic interface {
	UUID() string
	ServiceUUID() string
	GetProperties() Properties
	GetDescriptors() []Descriptor
}

// Descriptor is a discovered GATT descriptor
type Descriptor interface {
	UUID() string
	CharacteristicUUID() string
}

// Transport issues commands to a BLE stack for one peripheral and reports their
// outcomes asynchronously on Events. Commands never block on radio I/O.
//
// Attributes become visible through the lookup methods before the discovery
// event that found them is raised.
type Transport interface {
	Connect(ctx context.Context)
	Disconnect()
	IsConnected() bool

	DiscoverServices(serviceUUIDs []string)
	DiscoverCharacteristics(serviceUUID string, charUUIDs []string)
	DiscoverDescriptors(c Characteristic)

	ReadCharacteristic(c Characteristic)
	WriteCharacteristic(c Characteristic, data []byte, mode WriteMode)
	ReadDescriptor(d Descriptor)
	WriteDescriptor(d Descriptor, data []byte)
	SetNotify(c Characteristic, enable bool)
	ReadRSSI()

	// MaxWritePayloadSize returns the largest value accepted by a single write in the given mode.
	MaxWritePayloadSize(mode WriteMode) int

	Services() []Service
	GetService(uuid string) (Service, bool)
	GetCharacteristic(service, uuid string) (Characteristic, bool)
	GetDescriptor(service, characteristic, uuid string) (Descriptor, bool)

	Events() <-chan Event
}
