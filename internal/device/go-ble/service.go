package goble

import (
	"sync"

	"github.com/go-ble/ble"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/blegatt/internal/device"
)

// ----------------------------
// Attribute cache
// ----------------------------

// BLEService wraps a discovered ble.Service. Characteristics keep discovery order.
type BLEService struct {
	uuid   string
	BLESvc *ble.Service
	mu     *sync.RWMutex
	chars  *orderedmap.OrderedMap[string, *BLECharacteristic]
}

// BLECharacteristic wraps a discovered ble.Characteristic
type BLECharacteristic struct {
	uuid    string
	service string
	BLEChar *ble.Characteristic
	mu      *sync.RWMutex
	descs   *orderedmap.OrderedMap[string, *BLEDescriptor]
}

// BLEDescriptor wraps a discovered ble.Descriptor. It remembers its service so
// value events can be addressed without walking the tree.
type BLEDescriptor struct {
	uuid           string
	service        string
	characteristic string
	BLEDesc        *ble.Descriptor
}

func (s *BLEService) UUID() string { return s.uuid }

func (s *BLEService) GetCharacteristics() []device.Characteristic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]device.Characteristic, 0, s.chars.Len())
	for pair := s.chars.Oldest(); pair != nil; pair = pair.Next() {
		result = append(result, pair.Value)
	}
	return result
}

func (c *BLECharacteristic) UUID() string        { return c.uuid }
func (c *BLECharacteristic) ServiceUUID() string { return c.service }

// GetProperties returns the on-air property bits; go-ble keeps the same layout.
func (c *BLECharacteristic) GetProperties() device.Properties {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return device.Properties(c.BLEChar.Property)
}

func (c *BLECharacteristic) GetDescriptors() []device.Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]device.Descriptor, 0, c.descs.Len())
	for pair := c.descs.Oldest(); pair != nil; pair = pair.Next() {
		result = append(result, pair.Value)
	}
	return result
}

func (d *BLEDescriptor) UUID() string               { return d.uuid }
func (d *BLEDescriptor) CharacteristicUUID() string { return d.characteristic }

// attributeCache holds every attribute discovered on the current connection,
// keyed by normalized UUID, in discovery order. Rediscovery refreshes the
// go-ble handles of known attributes in place.
type attributeCache struct {
	mu       sync.RWMutex
	services *orderedmap.OrderedMap[string, *BLEService]
}

func newAttributeCache() *attributeCache {
	return &attributeCache{
		services: orderedmap.New[string, *BLEService](),
	}
}

func (a *attributeCache) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.services = orderedmap.New[string, *BLEService]()
}

func (a *attributeCache) addServices(svcs []*ble.Service) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range svcs {
		uuid := device.NormalizeUUID(s.UUID.String())
		if existing, ok := a.services.Get(uuid); ok {
			existing.BLESvc = s
			continue
		}
		a.services.Set(uuid, &BLEService{
			uuid:   uuid,
			BLESvc: s,
			mu:     &a.mu,
			chars:  orderedmap.New[string, *BLECharacteristic](),
		})
	}
}

func (a *attributeCache) addCharacteristics(svc *BLEService, chars []*ble.Characteristic) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range chars {
		uuid := device.NormalizeUUID(c.UUID.String())
		if existing, ok := svc.chars.Get(uuid); ok {
			existing.BLEChar = c
			continue
		}
		svc.chars.Set(uuid, &BLECharacteristic{
			uuid:    uuid,
			service: svc.uuid,
			BLEChar: c,
			mu:      &a.mu,
			descs:   orderedmap.New[string, *BLEDescriptor](),
		})
	}
}

func (a *attributeCache) addDescriptors(char *BLECharacteristic, descs []*ble.Descriptor) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, d := range descs {
		uuid := device.NormalizeUUID(d.UUID.String())
		if existing, ok := char.descs.Get(uuid); ok {
			existing.BLEDesc = d
			continue
		}
		char.descs.Set(uuid, &BLEDescriptor{
			uuid:           uuid,
			service:        char.service,
			characteristic: char.uuid,
			BLEDesc:        d,
		})
	}
}

func (a *attributeCache) list() []device.Service {
	a.mu.RLock()
	defer a.mu.RUnlock()
	result := make([]device.Service, 0, a.services.Len())
	for pair := a.services.Oldest(); pair != nil; pair = pair.Next() {
		result = append(result, pair.Value)
	}
	return result
}

func (a *attributeCache) service(uuid string) (*BLEService, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.services.Get(device.NormalizeUUID(uuid))
}

func (a *attributeCache) characteristic(service, uuid string) (*BLECharacteristic, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	svc, ok := a.services.Get(device.NormalizeUUID(service))
	if !ok {
		return nil, false
	}
	return svc.chars.Get(device.NormalizeUUID(uuid))
}

func (a *attributeCache) descriptor(service, characteristic, uuid string) (*BLEDescriptor, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	svc, ok := a.services.Get(device.NormalizeUUID(service))
	if !ok {
		return nil, false
	}
	char, ok := svc.chars.Get(device.NormalizeUUID(characteristic))
	if !ok {
		return nil, false
	}
	return char.descs.Get(device.NormalizeUUID(uuid))
}
