package testutils

import "github.com/srg/blegatt/internal/device"

// Profile is a mocked attribute tree implementing the transport lookups
type Profile struct {
	services []*MockService
}

// MockService implements device.Service
type MockService struct {
	uuid            string
	characteristics []*MockCharacteristic
}

// MockCharacteristic implements device.Characteristic
type MockCharacteristic struct {
	uuid        string
	service     string
	props       device.Properties
	descriptors []*MockDescriptor
	Value       []byte
}

// MockDescriptor implements device.Descriptor
type MockDescriptor struct {
	uuid           string
	characteristic string
}

func (s *MockService) UUID() string { return s.uuid }

func (s *MockService) GetCharacteristics() []device.Characteristic {
	out := make([]device.Characteristic, len(s.characteristics))
	for i, c := range s.characteristics {
		out[i] = c
	}
	return out
}

func (c *MockCharacteristic) UUID() string                     { return c.uuid }
func (c *MockCharacteristic) ServiceUUID() string              { return c.service }
func (c *MockCharacteristic) GetProperties() device.Properties { return c.props }

func (c *MockCharacteristic) GetDescriptors() []device.Descriptor {
	out := make([]device.Descriptor, len(c.descriptors))
	for i, d := range c.descriptors {
		out[i] = d
	}
	return out
}

func (d *MockDescriptor) UUID() string               { return d.uuid }
func (d *MockDescriptor) CharacteristicUUID() string { return d.characteristic }

// Services returns the services in profile order
func (p *Profile) Services() []device.Service {
	out := make([]device.Service, len(p.services))
	for i, s := range p.services {
		out[i] = s
	}
	return out
}

// GetService looks a service up by identifier in any accepted form
func (p *Profile) GetService(uuid string) (device.Service, bool) {
	s := p.service(uuid)
	if s == nil {
		return nil, false
	}
	return s, true
}

// GetCharacteristic looks a characteristic up by service and characteristic identifiers
func (p *Profile) GetCharacteristic(service, uuid string) (device.Characteristic, bool) {
	c := p.characteristic(service, uuid)
	if c == nil {
		return nil, false
	}
	return c, true
}

// GetDescriptor looks a descriptor up by its full path
func (p *Profile) GetDescriptor(service, characteristic, uuid string) (device.Descriptor, bool) {
	c := p.characteristic(service, characteristic)
	if c == nil {
		return nil, false
	}
	id := device.NormalizeUUID(uuid)
	for _, d := range c.descriptors {
		if d.uuid == id {
			return d, true
		}
	}
	return nil, false
}

func (p *Profile) service(uuid string) *MockService {
	id := device.NormalizeUUID(uuid)
	for _, s := range p.services {
		if s.uuid == id {
			return s
		}
	}
	return nil
}

func (p *Profile) characteristic(service, uuid string) *MockCharacteristic {
	s := p.service(service)
	if s == nil {
		return nil
	}
	id := device.NormalizeUUID(uuid)
	for _, c := range s.characteristics {
		if c.uuid == id {
			return c
		}
	}
	return nil
}
