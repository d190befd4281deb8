package testutils

import (
	"bytes"
	"sync"

	blelib "github.com/go-ble/ble"

	"github.com/srg/blegatt/internal/device"
)

// GATTWrite records one write performed on a FakeGATTClient
type GATTWrite struct {
	UUID    string
	Value   []byte
	NoRsp   bool
	IsDescr bool
}

// FakeGATTClient is an in-memory peripheral speaking the go-ble client API.
// Reads return attribute values, writes store them, and Subscribe replays
// Notifications to the handler.
//
//	client := testutils.NewFakeGATTClient(builder.BuildBLE())
//	goble.Dial = func(context.Context, string) (goble.GATTClient, error) { return client, nil }
type FakeGATTClient struct {
	mu         sync.Mutex
	services   []*blelib.Service
	writes     []GATTWrite
	subscribed map[string]bool

	RSSI          int
	MTU           int
	Notifications [][]byte
	DiscoverErr   error // returned by DiscoverServices when set

	disconnected chan struct{}
	linkUp       bool
}

// NewFakeGATTClient serves services. Descriptors get non-zero handles so they
// can be read back.
func NewFakeGATTClient(services []*blelib.Service) *FakeGATTClient {
	var handle uint16 = 1
	for _, s := range services {
		for _, c := range s.Characteristics {
			for _, d := range c.Descriptors {
				handle++
				d.Handle = handle
			}
		}
	}
	return &FakeGATTClient{
		services:     services,
		subscribed:   make(map[string]bool),
		RSSI:         -42,
		MTU:          blelib.DefaultMTU,
		disconnected: make(chan struct{}),
		linkUp:       true,
	}
}

// Redial brings a fresh link up on the same attribute tree and returns f.
// Each go-ble dial yields a new client, so dialers in tests call this per dial.
func (f *FakeGATTClient) Redial() *FakeGATTClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.linkUp {
		f.disconnected = make(chan struct{})
		f.linkUp = true
	}
	return f
}

func matches(filter []blelib.UUID, u blelib.UUID) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f.Equal(u) {
			return true
		}
	}
	return false
}

func (f *FakeGATTClient) DiscoverServices(filter []blelib.UUID) ([]*blelib.Service, error) {
	if f.DiscoverErr != nil {
		return nil, f.DiscoverErr
	}
	var out []*blelib.Service
	for _, s := range f.services {
		if matches(filter, s.UUID) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *FakeGATTClient) DiscoverCharacteristics(filter []blelib.UUID, s *blelib.Service) ([]*blelib.Characteristic, error) {
	var out []*blelib.Characteristic
	for _, c := range s.Characteristics {
		if matches(filter, c.UUID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *FakeGATTClient) DiscoverDescriptors(filter []blelib.UUID, c *blelib.Characteristic) ([]*blelib.Descriptor, error) {
	var out []*blelib.Descriptor
	for _, d := range c.Descriptors {
		if matches(filter, d.UUID) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *FakeGATTClient) ReadCharacteristic(c *blelib.Characteristic) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return bytes.Clone(c.Value), nil
}

func (f *FakeGATTClient) WriteCharacteristic(c *blelib.Characteristic, value []byte, noRsp bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.Value = bytes.Clone(value)
	f.writes = append(f.writes, GATTWrite{UUID: device.NormalizeUUID(c.UUID.String()), Value: c.Value, NoRsp: noRsp})
	return nil
}

func (f *FakeGATTClient) ReadDescriptor(d *blelib.Descriptor) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return bytes.Clone(d.Value), nil
}

func (f *FakeGATTClient) WriteDescriptor(d *blelib.Descriptor, v []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d.Value = bytes.Clone(v)
	f.writes = append(f.writes, GATTWrite{UUID: device.NormalizeUUID(d.UUID.String()), Value: d.Value, IsDescr: true})
	return nil
}

func (f *FakeGATTClient) ReadRSSI() int { return f.RSSI }

func (f *FakeGATTClient) ExchangeMTU(int) (int, error) { return f.MTU, nil }

// Subscribe replays Notifications to h on a separate goroutine
func (f *FakeGATTClient) Subscribe(c *blelib.Characteristic, _ bool, h blelib.NotificationHandler) error {
	f.mu.Lock()
	f.subscribed[device.NormalizeUUID(c.UUID.String())] = true
	values := f.Notifications
	f.mu.Unlock()

	go func() {
		for _, v := range values {
			h(v)
		}
	}()
	return nil
}

func (f *FakeGATTClient) Unsubscribe(c *blelib.Characteristic, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed[device.NormalizeUUID(c.UUID.String())] = false
	return nil
}

// CancelConnection drops the link; Disconnected is closed
func (f *FakeGATTClient) CancelConnection() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.linkUp {
		close(f.disconnected)
		f.linkUp = false
	}
	return nil
}

// Disconnected returns the channel of the current link
func (f *FakeGATTClient) Disconnected() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnected
}

// LinkUp reports whether the current link has not been cancelled
func (f *FakeGATTClient) LinkUp() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.linkUp
}

// Writes returns the writes performed so far
func (f *FakeGATTClient) Writes() []GATTWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]GATTWrite(nil), f.writes...)
}

// Subscribed reports whether the characteristic currently has a subscription
func (f *FakeGATTClient) Subscribed(uuid string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribed[device.NormalizeUUID(uuid)]
}

// SetDescriptorValue stores the value a descriptor read returns
func (f *FakeGATTClient) SetDescriptorValue(charUUID, descUUID string, value []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.services {
		for _, c := range s.Characteristics {
			if device.NormalizeUUID(c.UUID.String()) != device.NormalizeUUID(charUUID) {
				continue
			}
			for _, d := range c.Descriptors {
				if device.NormalizeUUID(d.UUID.String()) == device.NormalizeUUID(descUUID) {
					d.Value = value
					return true
				}
			}
		}
	}
	return false
}
