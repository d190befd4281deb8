package testutils

import (
	"encoding/json"
	"fmt"
	"strings"

	blelib "github.com/go-ble/ble"
	"github.com/srg/blegatt/internal/device"
)

// CharacteristicConfig represents a GATT characteristic configuration for mocking
type CharacteristicConfig struct {
	UUID        string   `json:"uuid"`
	Properties  string   `json:"properties,omitempty"` // e.g., "read,write,notify"
	Value       []byte   `json:"value,omitempty"`
	Descriptors []string `json:"descriptors,omitempty"`
}

// ServiceConfig represents a GATT service configuration for mocking
type ServiceConfig struct {
	UUID            string                 `json:"uuid"`
	Characteristics []CharacteristicConfig `json:"characteristics,omitempty"`
}

// DeviceProfileConfig represents the complete peripheral profile for mocking
type DeviceProfileConfig struct {
	Services []ServiceConfig `json:"services"`
}

// PeripheralDeviceBuilder builds a mocked peripheral attribute tree, either as
// device-level attributes for the engine or as a go-ble profile for the adapter.
type PeripheralDeviceBuilder struct {
	profile DeviceProfileConfig
}

// NewPeripheralDeviceBuilder creates a new peripheral device builder
func NewPeripheralDeviceBuilder() *PeripheralDeviceBuilder {
	return &PeripheralDeviceBuilder{
		profile: DeviceProfileConfig{
			Services: []ServiceConfig{},
		},
	}
}

// WithService adds a service to the device profile
func (b *PeripheralDeviceBuilder) WithService(uuid string) *PeripheralDeviceBuilder {
	b.profile.Services = append(b.profile.Services, ServiceConfig{
		UUID:            uuid,
		Characteristics: []CharacteristicConfig{},
	})
	return b
}

// WithCharacteristic adds a characteristic to the last added service
func (b *PeripheralDeviceBuilder) WithCharacteristic(uuid, properties string, value []byte, descriptors ...string) *PeripheralDeviceBuilder {
	if len(b.profile.Services) == 0 {
		panic("WithCharacteristic: no service added yet, call WithService first")
	}

	lastServiceIdx := len(b.profile.Services) - 1
	char := CharacteristicConfig{
		UUID:        uuid,
		Properties:  properties,
		Value:       value,
		Descriptors: descriptors,
	}
	b.profile.Services[lastServiceIdx].Characteristics = append(
		b.profile.Services[lastServiceIdx].Characteristics, char)
	return b
}

// FromJSON fills the device profile from JSON
func (b *PeripheralDeviceBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *PeripheralDeviceBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)

	var config DeviceProfileConfig
	if err := json.Unmarshal([]byte(jsonStr), &config); err != nil {
		panic(fmt.Sprintf("PeripheralDeviceBuilder.FromJSON: failed to unmarshal: %v", err))
	}

	b.profile = config
	return b
}

// Config returns the profile configured so far
func (b *PeripheralDeviceBuilder) Config() DeviceProfileConfig {
	return b.profile
}

// ParseProperties converts a comma separated property list to device.Properties.
// An empty list means read, write and notify.
func ParseProperties(props string) device.Properties {
	if props == "" {
		return device.PropRead | device.PropWrite | device.PropNotify
	}

	var p device.Properties
	for _, name := range strings.Split(props, ",") {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "broadcast":
			p |= device.PropBroadcast
		case "read":
			p |= device.PropRead
		case "write-without-response", "writewithoutresponse":
			p |= device.PropWriteWithoutResponse
		case "write":
			p |= device.PropWrite
		case "notify":
			p |= device.PropNotify
		case "indicate":
			p |= device.PropIndicate
		default:
			panic(fmt.Sprintf("ParseProperties: unknown property %q", name))
		}
	}
	return p
}

// Build creates the device-level attribute tree
func (b *PeripheralDeviceBuilder) Build() *Profile {
	profile := &Profile{}
	for _, svcConfig := range b.profile.Services {
		svc := &MockService{uuid: device.NormalizeUUID(svcConfig.UUID)}
		for _, charConfig := range svcConfig.Characteristics {
			c := &MockCharacteristic{
				uuid:    device.NormalizeUUID(charConfig.UUID),
				service: svc.uuid,
				props:   ParseProperties(charConfig.Properties),
				Value:   charConfig.Value,
			}
			for _, d := range charConfig.Descriptors {
				c.descriptors = append(c.descriptors, &MockDescriptor{
					uuid:           device.NormalizeUUID(d),
					characteristic: c.uuid,
				})
			}
			svc.characteristics = append(svc.characteristics, c)
		}
		profile.services = append(profile.services, svc)
	}
	return profile
}

// BuildBLE creates the same tree as go-ble services, as a peripheral would return them from discovery.
func (b *PeripheralDeviceBuilder) BuildBLE() []*blelib.Service {
	var services []*blelib.Service
	for _, svcConfig := range b.profile.Services {
		svc := &blelib.Service{UUID: blelib.MustParse(svcConfig.UUID)}
		for _, charConfig := range svcConfig.Characteristics {
			c := &blelib.Characteristic{
				UUID:     blelib.MustParse(charConfig.UUID),
				Property: toBLEProperty(ParseProperties(charConfig.Properties)),
				Value:    charConfig.Value,
			}
			for _, d := range charConfig.Descriptors {
				c.Descriptors = append(c.Descriptors, &blelib.Descriptor{UUID: blelib.MustParse(d)})
			}
			svc.Characteristics = append(svc.Characteristics, c)
		}
		services = append(services, svc)
	}
	return services
}

// go-ble uses the on-air property bit layout
func toBLEProperty(p device.Properties) blelib.Property {
	return blelib.Property(p)
}
