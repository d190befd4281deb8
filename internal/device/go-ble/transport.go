package goble

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-ble/ble"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"

	"github.com/srg/blegatt/internal/device"
	"github.com/srg/blegatt/internal/groutine"
)

// GATTClient is the part of ble.Client the transport drives
type GATTClient interface {
	DiscoverServices(filter []ble.UUID) ([]*ble.Service, error)
	DiscoverCharacteristics(filter []ble.UUID, s *ble.Service) ([]*ble.Characteristic, error)
	DiscoverDescriptors(filter []ble.UUID, c *ble.Characteristic) ([]*ble.Descriptor, error)
	ReadCharacteristic(c *ble.Characteristic) ([]byte, error)
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	ReadDescriptor(d *ble.Descriptor) ([]byte, error)
	WriteDescriptor(d *ble.Descriptor, v []byte) error
	ReadRSSI() int
	ExchangeMTU(rxMTU int) (txMTU int, err error)
	Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error
	Unsubscribe(c *ble.Characteristic, ind bool) error
	CancelConnection() error
}

// ----------------------------
// Device Factory
// ----------------------------

// DeviceFactory creates the host ble.Device (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = newDevice

// Dial connects to the peripheral at address (can be overridden in tests)
var Dial = func(ctx context.Context, address string) (GATTClient, error) {
	dev, err := DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}
	ble.SetDefaultDevice(dev)

	client, err := ble.Dial(ctx, ble.NewAddr(address))
	if err != nil {
		return nil, err
	}
	return client, nil
}

// ----------------------------
// Transport
// ----------------------------

// Options configures a Transport
type Options struct {
	Address        string
	ConnectTimeout time.Duration `default:"10s"`
	EventBuffer    int           `default:"128"`
	Logger         *logrus.Logger
}

// Transport is a device.Transport over go-ble. Commands are queued without bound
// and executed one at a time on a worker goroutine, since go-ble calls block on
// the radio; each outcome is reported as an event.
type Transport struct {
	opts   Options
	logger *logrus.Logger
	cache  *attributeCache

	events   chan device.Event
	commands *commandQueue

	clientMu  sync.RWMutex
	client    GATTClient
	connected atomic.Bool
	mtu       atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
}

var _ device.Transport = (*Transport)(nil)

// NewTransport creates a transport for one peripheral and starts its command worker.
// The worker stops when ctx is done or Close is called.
func NewTransport(ctx context.Context, opts Options) *Transport {
	defaults.SetDefaults(&opts)
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	t := &Transport{
		opts:     opts,
		logger:   opts.Logger,
		cache:    newAttributeCache(),
		events:   make(chan device.Event, opts.EventBuffer),
		commands: newCommandQueue(),
	}
	t.ctx, t.cancel = context.WithCancel(ctx)
	groutine.Go(t.ctx, "gatt-command-worker", t.work)
	return t
}

// Close stops the command worker. Events not yet consumed are dropped.
func (t *Transport) Close() {
	t.cancel()
}

func (t *Transport) work(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			t.logger.WithField("dropped", t.commands.Len()).Debug("Command worker stopped")
			return
		}
		if cmd, ok := t.commands.pop(); ok {
			cmd()
			continue
		}
		select {
		case <-ctx.Done():
		case <-t.commands.Ready():
		}
	}
}

// enqueue never blocks; commands issued after Close are dropped
func (t *Transport) enqueue(cmd func()) {
	if t.ctx.Err() != nil {
		return
	}
	t.commands.push(cmd)
}

func (t *Transport) emit(ev device.Event) {
	select {
	case t.events <- ev:
	case <-t.ctx.Done():
	}
}

// Events implements device.Transport
func (t *Transport) Events() <-chan device.Event {
	return t.events
}

func (t *Transport) currentClient() GATTClient {
	t.clientMu.RLock()
	defer t.clientMu.RUnlock()
	return t.client
}

// ----------------------------
// Link
// ----------------------------

// Connect dials the peripheral and exchanges the ATT MTU
func (t *Transport) Connect(ctx context.Context) {
	t.enqueue(func() {
		if t.connected.Load() {
			t.logger.WithField("address", t.opts.Address).Warn("Connection attempt while already connected")
			t.emit(device.Connected{Err: ErrAlreadyConnected})
			return
		}

		t.logger.WithFields(logrus.Fields{
			"address": t.opts.Address,
			"timeout": t.opts.ConnectTimeout,
		}).Debug("Dialing BLE device...")

		dialCtx, cancel := context.WithTimeout(ctx, t.opts.ConnectTimeout)
		defer cancel()

		client, err := Dial(dialCtx, t.opts.Address)
		if err != nil {
			t.logger.WithFields(logrus.Fields{
				"address": t.opts.Address,
				"error":   err,
			}).Error("Failed to dial BLE device")
			t.emit(device.Connected{Err: fmt.Errorf("failed to connect to device with address %q: %w", t.opts.Address, NormalizeError(err))})
			return
		}

		mtu := ble.DefaultMTU
		if txMTU, err := client.ExchangeMTU(ble.MaxMTU); err != nil {
			t.logger.WithField("error", err).Debug("MTU exchange failed, using default")
		} else if txMTU > 0 {
			mtu = txMTU
		}
		t.mtu.Store(int32(mtu))

		t.cache.reset()
		t.clientMu.Lock()
		t.client = client
		t.clientMu.Unlock()
		t.connected.Store(true)
		t.monitor(client)

		t.logger.WithFields(logrus.Fields{
			"address": t.opts.Address,
			"mtu":     mtu,
		}).Info("BLE link established")
		t.emit(device.Connected{})
	})
}

// monitor watches the client's disconnection channel where the platform provides one
func (t *Transport) monitor(client GATTClient) {
	dc, ok := client.(interface{ Disconnected() <-chan struct{} })
	if !ok {
		t.logger.Debug("Client does not support Disconnected() channel")
		return
	}
	groutine.Go(t.ctx, "ble-connection-monitor", func(ctx context.Context) {
		select {
		case <-dc.Disconnected():
			t.logger.Warn("Platform reported disconnection")
			t.linkDown(client, ErrLinkLost)
		case <-ctx.Done():
		}
	})
}

// linkDown retires client and reports the disconnection once per link
func (t *Transport) linkDown(client GATTClient, err error) {
	t.clientMu.Lock()
	if t.client != client {
		t.clientMu.Unlock()
		return
	}
	t.client = nil
	t.clientMu.Unlock()

	t.connected.Store(false)
	t.emit(device.Disconnected{Err: err})
}

// Disconnect cancels the link. A Disconnected event follows.
func (t *Transport) Disconnect() {
	t.enqueue(func() {
		client := t.currentClient()
		if client == nil {
			t.logger.Debug("Disconnect called but already disconnected")
			return
		}

		t.logger.WithField("address", t.opts.Address).Info("Disconnecting BLE device...")
		err := client.CancelConnection()
		if err != nil {
			t.logger.WithField("error", err).Warn("BLE device disconnected with errors")
		}
		t.linkDown(client, NormalizeError(err))
	})
}

// IsConnected implements device.Transport
func (t *Transport) IsConnected() bool {
	return t.connected.Load()
}

// MaxWritePayloadSize is the negotiated ATT MTU minus the 3-byte ATT header
func (t *Transport) MaxWritePayloadSize(device.WriteMode) int {
	mtu := int(t.mtu.Load())
	if mtu == 0 {
		mtu = ble.DefaultMTU
	}
	return mtu - 3
}

// ----------------------------
// Discovery
// ----------------------------

func parseUUIDs(ids []string) ([]ble.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	uuids := make([]ble.UUID, 0, len(ids))
	for _, id := range ids {
		u, err := ble.Parse(device.NormalizeUUID(id))
		if err != nil {
			return nil, fmt.Errorf("invalid UUID %q: %w", id, err)
		}
		uuids = append(uuids, u)
	}
	return uuids, nil
}

// DiscoverServices implements device.Transport
func (t *Transport) DiscoverServices(serviceUUIDs []string) {
	filter := slices.Clone(serviceUUIDs)
	t.enqueue(func() {
		client := t.currentClient()
		if client == nil {
			t.emit(device.ServicesDiscovered{Filter: filter, Err: ErrNotConnected})
			return
		}
		uuids, err := parseUUIDs(filter)
		if err != nil {
			t.emit(device.ServicesDiscovered{Filter: filter, Err: err})
			return
		}

		svcs, err := client.DiscoverServices(uuids)
		if err != nil {
			t.emit(device.ServicesDiscovered{Filter: filter, Err: NormalizeError(err)})
			return
		}
		t.cache.addServices(svcs)
		t.logger.WithField("services", len(svcs)).Debug("Services discovered")
		t.emit(device.ServicesDiscovered{Filter: filter})
	})
}

// DiscoverCharacteristics implements device.Transport
func (t *Transport) DiscoverCharacteristics(serviceUUID string, charUUIDs []string) {
	filter := slices.Clone(charUUIDs)
	t.enqueue(func() {
		ev := device.CharacteristicsDiscovered{Service: device.NormalizeUUID(serviceUUID), Filter: filter}
		client := t.currentClient()
		if client == nil {
			ev.Err = ErrNotConnected
			t.emit(ev)
			return
		}
		svc, ok := t.cache.service(serviceUUID)
		if !ok {
			ev.Err = fmt.Errorf("service %s: %w", serviceUUID, ErrUnknownAttribute)
			t.emit(ev)
			return
		}
		uuids, err := parseUUIDs(filter)
		if err != nil {
			ev.Err = err
			t.emit(ev)
			return
		}

		chars, err := client.DiscoverCharacteristics(uuids, svc.BLESvc)
		if err != nil {
			ev.Err = NormalizeError(err)
			t.emit(ev)
			return
		}
		t.cache.addCharacteristics(svc, chars)
		t.emit(ev)
	})
}

// DiscoverDescriptors implements device.Transport
func (t *Transport) DiscoverDescriptors(c device.Characteristic) {
	t.enqueue(func() {
		ev := device.DescriptorsDiscovered{Service: c.ServiceUUID(), Characteristic: c.UUID()}
		client, bc, err := t.resolveCharacteristic(c)
		if err != nil {
			ev.Err = err
			t.emit(ev)
			return
		}

		descs, err := client.DiscoverDescriptors(nil, bc.BLEChar)
		if err != nil {
			ev.Err = NormalizeError(err)
			t.emit(ev)
			return
		}
		t.cache.addDescriptors(bc, descs)
		t.emit(ev)
	})
}

func (t *Transport) resolveCharacteristic(c device.Characteristic) (GATTClient, *BLECharacteristic, error) {
	client := t.currentClient()
	if client == nil {
		return nil, nil, ErrNotConnected
	}
	if bc, ok := c.(*BLECharacteristic); ok {
		return client, bc, nil
	}
	bc, ok := t.cache.characteristic(c.ServiceUUID(), c.UUID())
	if !ok {
		return nil, nil, fmt.Errorf("characteristic %s: %w", c.UUID(), ErrUnknownAttribute)
	}
	return client, bc, nil
}

// ----------------------------
// Values
// ----------------------------

// ReadCharacteristic implements device.Transport
func (t *Transport) ReadCharacteristic(c device.Characteristic) {
	t.enqueue(func() {
		ev := device.ValueUpdated{Service: c.ServiceUUID(), Characteristic: c.UUID()}
		client, bc, err := t.resolveCharacteristic(c)
		if err != nil {
			ev.Err = err
			t.emit(ev)
			return
		}
		ev.Value, err = client.ReadCharacteristic(bc.BLEChar)
		ev.Err = NormalizeError(err)
		t.emit(ev)
	})
}

// WriteCharacteristic implements device.Transport. Only acknowledged writes
// produce a ValueWritten event.
func (t *Transport) WriteCharacteristic(c device.Characteristic, data []byte, mode device.WriteMode) {
	value := bytes.Clone(data)
	t.enqueue(func() {
		ev := device.ValueWritten{Service: c.ServiceUUID(), Characteristic: c.UUID()}
		client, bc, err := t.resolveCharacteristic(c)
		if err == nil {
			err = client.WriteCharacteristic(bc.BLEChar, value, mode == device.WithoutResponse)
		}
		if mode == device.WithoutResponse {
			if err != nil {
				t.logger.WithFields(logrus.Fields{
					"characteristic": c.UUID(),
					"error":          err,
				}).Warn("Write without response failed")
			}
			return
		}
		ev.Err = NormalizeError(err)
		t.emit(ev)
	})
}

// ReadDescriptor implements device.Transport
func (t *Transport) ReadDescriptor(d device.Descriptor) {
	t.enqueue(func() {
		bd, ok := d.(*BLEDescriptor)
		if !ok {
			t.logger.WithField("descriptor", d.UUID()).Warn("Read of a descriptor not discovered by this transport")
			return
		}
		ev := device.ValueUpdated{Service: bd.service, Characteristic: bd.characteristic, Descriptor: bd.uuid}
		client := t.currentClient()
		switch {
		case client == nil:
			ev.Err = ErrNotConnected
		case bd.BLEDesc.Handle == 0 && len(bd.BLEDesc.Value) > 0:
			// Darwin reports descriptor values with discovery but no handle to re-read them
			ev.Value = bytes.Clone(bd.BLEDesc.Value)
		case bd.BLEDesc.Handle == 0:
			ev.Err = ErrNoHandle
		default:
			var err error
			ev.Value, err = client.ReadDescriptor(bd.BLEDesc)
			ev.Err = NormalizeError(err)
		}
		t.emit(ev)
	})
}

// WriteDescriptor implements device.Transport
func (t *Transport) WriteDescriptor(d device.Descriptor, data []byte) {
	value := bytes.Clone(data)
	t.enqueue(func() {
		bd, ok := d.(*BLEDescriptor)
		if !ok {
			t.logger.WithField("descriptor", d.UUID()).Warn("Write of a descriptor not discovered by this transport")
			return
		}
		ev := device.ValueWritten{Service: bd.service, Characteristic: bd.characteristic, Descriptor: bd.uuid}
		client := t.currentClient()
		if client == nil {
			ev.Err = ErrNotConnected
		} else {
			ev.Err = NormalizeError(client.WriteDescriptor(bd.BLEDesc, value))
		}
		t.emit(ev)
	})
}

// SetNotify subscribes to or unsubscribes from a characteristic. Indications are
// used when the characteristic supports them but not notifications.
func (t *Transport) SetNotify(c device.Characteristic, enable bool) {
	t.enqueue(func() {
		ev := device.NotificationStateChanged{Service: c.ServiceUUID(), Characteristic: c.UUID(), Notifying: enable}
		client, bc, err := t.resolveCharacteristic(c)
		if err != nil {
			ev.Err = err
			t.emit(ev)
			return
		}

		props := bc.GetProperties()
		ind := !props.Has(device.PropNotify) && props.Has(device.PropIndicate)

		if enable {
			// go-ble needs the CCCD handle, which targeted discovery does not fetch
			if bc.BLEChar.CCCD == nil && len(bc.BLEChar.Descriptors) == 0 {
				if descs, derr := client.DiscoverDescriptors(nil, bc.BLEChar); derr == nil {
					t.cache.addDescriptors(bc, descs)
				} else {
					t.logger.WithField("error", derr).Debug("Descriptor discovery before subscribe failed")
				}
			}
			service, characteristic := bc.service, bc.uuid
			err = client.Subscribe(bc.BLEChar, ind, func(data []byte) {
				t.emit(device.ValueUpdated{
					Service:        service,
					Characteristic: characteristic,
					Value:          bytes.Clone(data),
				})
			})
		} else {
			err = client.Unsubscribe(bc.BLEChar, ind)
		}

		ev.Err = NormalizeError(err)
		t.emit(ev)
	})
}

// ReadRSSI implements device.Transport
func (t *Transport) ReadRSSI() {
	t.enqueue(func() {
		client := t.currentClient()
		if client == nil {
			t.emit(device.RSSIRead{Err: ErrNotConnected})
			return
		}
		t.emit(device.RSSIRead{RSSI: client.ReadRSSI()})
	})
}

// ----------------------------
// Lookups
// ----------------------------

// Services returns the cached services in discovery order
func (t *Transport) Services() []device.Service {
	return t.cache.list()
}

func (t *Transport) GetService(uuid string) (device.Service, bool) {
	svc, ok := t.cache.service(uuid)
	if !ok {
		return nil, false
	}
	return svc, true
}

func (t *Transport) GetCharacteristic(service, uuid string) (device.Characteristic, bool) {
	c, ok := t.cache.characteristic(service, uuid)
	if !ok {
		return nil, false
	}
	return c, true
}

func (t *Transport) GetDescriptor(service, characteristic, uuid string) (device.Descriptor, bool) {
	d, ok := t.cache.descriptor(service, characteristic, uuid)
	if !ok {
		return nil, false
	}
	return d, true
}
