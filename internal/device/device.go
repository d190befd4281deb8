package device

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blegatt/internal/codec"
	"github.com/srg/blegatt/internal/groutine"
)

// Success messages
const (
	msgConnected         = "Connection successful."
	msgServicesFound     = "Services discovered."
	msgWritten           = "Successfully written value."
	msgDescriptorWritten = "Successfully written descriptor value."
)

// Options configures a Device
type Options struct {
	Clock  Clock          // deadline scheduler; SystemClock when nil
	Logger *logrus.Logger // logrus.New() when nil

	// OnDisconnect is invoked on the event loop after a link loss has been
	// applied to pending operations.
	OnDisconnect func(err error)
}

// Device correlates asynchronous GATT operations on one peripheral with the
// events its Transport raises. It owns the pending-operation table, the
// discovery sequencer, the subscription guard and the transport handle.
//
// Every operation returns immediately; its Callback is invoked exactly once,
// on the calling goroutine for immediate failures and otherwise on the event
// loop or a timer goroutine.
type Device struct {
	transport Transport
	pending   *PendingTable
	sequencer *Sequencer
	guard     *SubscriptionGuard
	logger    *logrus.Logger

	onDisconnect func(err error)
}

// New creates a Device driving transport
func New(transport Transport, opts *Options) *Device {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Device{
		transport: transport,
		pending:   NewPendingTable(opts.Clock, logger),
		sequencer: NewSequencer(transport, logger),
		guard:     NewSubscriptionGuard(),
		logger:    logger,

		onDisconnect: opts.OnDisconnect,
	}
}

// Run dispatches transport events until ctx is done or the event channel closes.
func (d *Device) Run(ctx context.Context) {
	events := d.transport.Events()
	d.logger.WithField("goroutine", groutine.GetName(ctx)).Debug("Event loop started")
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				d.logger.Debug("Transport event channel closed")
				return
			}
			d.Dispatch(ev)
		}
	}
}

// Start runs the event loop on a named goroutine
func (d *Device) Start(ctx context.Context) {
	groutine.Go(ctx, "gatt-event-loop", d.Run)
}

// Dispatch routes one transport event to the operation it completes
func (d *Device) Dispatch(ev Event) {
	switch e := ev.(type) {
	case Connected:
		d.onConnected(e)
	case Disconnected:
		d.onDisconnected(e)
	case ServicesDiscovered:
		d.applyOutcomes(d.sequencer.HandleServices(e))
	case CharacteristicsDiscovered:
		d.applyOutcomes(d.sequencer.HandleCharacteristics(e))
	case DescriptorsDiscovered:
		d.applyOutcomes(d.sequencer.HandleDescriptors(e))
	case ValueUpdated:
		if e.Descriptor != "" {
			d.onDescriptorValue(e)
		} else {
			d.onCharacteristicValue(e)
		}
	case ValueWritten:
		d.onValueWritten(e)
	case NotificationStateChanged:
		d.onNotificationState(e)
	case RSSIRead:
		d.onRSSI(e)
	default:
		d.logger.WithField("event", fmt.Sprintf("%T", ev)).Warn("Unknown transport event")
	}
}

// ----------------------------
// Connection & discovery
// ----------------------------

// Connect asks the transport to establish the link and resolves once the full
// attribute tree (services, characteristics and descriptors) is discovered.
func (d *Device) Connect(ctx context.Context, timeout time.Duration, cb Callback) {
	key := NewKey(OpConnect)
	d.pending.Register(key, cb, timeout)

	d.logger.WithField("timeout", timeout).Info("Connecting to peripheral...")
	d.transport.Connect(ctx)
}

// DiscoverServices discovers the whole attribute tree of a connected peripheral.
func (d *Device) DiscoverServices(timeout time.Duration, cb Callback) {
	key := NewKey(OpDiscoverServices)
	d.pending.Register(key, cb, timeout)
	if !d.requireConnected(key) {
		return
	}
	d.sequencer.BeginFull()
}

// requireConnected rejects the operation registered under key with NotConnected
// when the link is down
func (d *Device) requireConnected(key Key) bool {
	if d.transport.IsConnected() {
		return true
	}
	d.pending.Reject(key, newError(NotConnected, key, msgNotConnected))
	return false
}

func (d *Device) onConnected(e Connected) {
	key := NewKey(OpConnect)
	if e.Err != nil {
		d.logger.WithField("error", e.Err).Warn("Failed to connect to peripheral")
		d.pending.Reject(key, transportError(key, "", e.Err))
		return
	}
	d.logger.Debug("Link established, discovering services and characteristics...")
	d.sequencer.BeginFull()
}

func (d *Device) onDisconnected(e Disconnected) {
	fields := logrus.Fields{}
	if e.Err != nil {
		fields["error"] = e.Err
	}
	d.sequencer.Reset()
	rejected := d.pending.RejectAll(func(key Key) error {
		return newError(PeripheralDisconnected, key, msgDisconnected)
	})
	released := d.guard.ReleaseAll()
	fields["rejected"] = rejected
	fields["released_guards"] = released
	d.logger.WithFields(fields).Info("Peripheral disconnected")

	if d.onDisconnect != nil {
		d.onDisconnect(e.Err)
	}
}

// applyOutcomes completes operations finished by the discovery sequencer.
// Full discovery resolves both the discoverServices and connect operations;
// a connection is ready only once the whole attribute tree is cached.
func (d *Device) applyOutcomes(outcomes []Outcome) {
	for _, o := range outcomes {
		if o.Target != (Key{}) {
			d.pending.Reject(o.Target, o.Err)
			continue
		}
		discoverKey := NewKey(OpDiscoverServices)
		connectKey := NewKey(OpConnect)
		if o.Err != nil {
			d.logger.WithField("error", o.Err).Warn("Service discovery failed")
			d.pending.Reject(connectKey, transportError(connectKey, "", o.Err))
			d.pending.Reject(discoverKey, transportError(discoverKey, "", o.Err))
			continue
		}
		d.logger.WithField("services", len(d.transport.Services())).Info("Peripheral ready")
		d.pending.Resolve(connectKey, msgConnected)
		d.pending.Resolve(discoverKey, msgServicesFound)
	}
}

// ----------------------------
// RSSI
// ----------------------------

// ReadRSSI reads the current signal strength; the result is the decimal dBm value.
func (d *Device) ReadRSSI(timeout time.Duration, cb Callback) {
	key := NewKey(OpReadRSSI)
	d.pending.Register(key, cb, timeout)
	if !d.requireConnected(key) {
		return
	}
	d.logger.Debug("Reading RSSI value")
	d.transport.ReadRSSI()
}

func (d *Device) onRSSI(e RSSIRead) {
	key := NewKey(OpReadRSSI)
	if e.Err != nil {
		d.pending.Reject(key, transportError(key, "", e.Err))
		return
	}
	d.pending.Resolve(key, strconv.Itoa(e.RSSI))
}

// ----------------------------
// Characteristics
// ----------------------------

// Read reads a characteristic value. The result is the value in codec.Encode form.
func (d *Device) Read(service, characteristic string, timeout time.Duration, cb Callback) {
	key := NewKey(OpRead, service, characteristic)
	d.pending.Register(key, cb, timeout)
	if !d.requireConnected(key) {
		return
	}

	c, ok := d.transport.GetCharacteristic(service, characteristic)
	if !ok {
		d.pending.Reject(key, newError(NotFound, key, msgCharacteristicNotFound))
		return
	}
	d.logger.WithField("key", key.String()).Debug("Reading value")
	d.transport.ReadCharacteristic(c)
}

// Write writes value (in codec.Encode form) to a characteristic. Writes without
// response resolve as soon as the command is issued.
func (d *Device) Write(service, characteristic, value string, mode WriteMode, timeout time.Duration, cb Callback) {
	key := NewKey(OpWrite, service, characteristic)
	data, err := codec.Decode(value)
	if err != nil {
		cb(rejected(&OpError{Kind: InvalidValue, Key: key, Msg: err.Error(), Err: err}))
		return
	}

	if mode == WithResponse {
		d.pending.Register(key, cb, timeout)
	} else {
		d.pending.Register(key, cb, 0)
	}
	if !d.requireConnected(key) {
		return
	}

	c, ok := d.transport.GetCharacteristic(service, characteristic)
	if !ok {
		d.pending.Reject(key, newError(NotFound, key, msgCharacteristicNotFound))
		return
	}
	d.logger.WithFields(logrus.Fields{
		"key":   key.String(),
		"bytes": len(data),
		"mode":  mode,
	}).Debug("Writing value")
	d.transport.WriteCharacteristic(c, data, mode)

	if mode == WithoutResponse {
		d.pending.Resolve(key, msgWritten)
	}
}

func (d *Device) onCharacteristicValue(e ValueUpdated) {
	readKey := NewKey(OpRead, e.Service, e.Characteristic)
	if e.Err != nil {
		d.pending.Reject(readKey, transportError(readKey, "", e.Err))
		return
	}
	if e.Value == nil {
		d.pending.Reject(readKey, newError(NoValue, readKey, msgCharacteristicNoValue))
		return
	}

	value := codec.Encode(e.Value)
	d.pending.Resolve(readKey, value)
	d.pending.Notify(NewKey(OpNotification, e.Service, e.Characteristic), resolved(value))
}

func (d *Device) onValueWritten(e ValueWritten) {
	if e.Descriptor != "" {
		key := NewKey(OpWriteDescriptor, e.Service, e.Characteristic, e.Descriptor)
		if e.Err != nil {
			d.pending.Reject(key, transportError(key, "", e.Err))
			return
		}
		d.pending.Resolve(key, msgDescriptorWritten)
		return
	}

	key := NewKey(OpWrite, e.Service, e.Characteristic)
	if e.Err != nil {
		d.pending.Reject(key, transportError(key, "", e.Err))
		return
	}
	d.pending.Resolve(key, msgWritten)
}

// ----------------------------
// Descriptors
// ----------------------------

// ReadDescriptor reads a descriptor value. The result is in codec.EncodeDescriptor form.
func (d *Device) ReadDescriptor(service, characteristic, descriptor string, timeout time.Duration, cb Callback) {
	key := NewKey(OpReadDescriptor, service, characteristic, descriptor)
	d.pending.Register(key, cb, timeout)
	if !d.requireConnected(key) {
		return
	}

	desc, ok := d.transport.GetDescriptor(service, characteristic, descriptor)
	if !ok {
		d.pending.Reject(key, newError(NotFound, key, msgDescriptorNotFound))
		return
	}
	d.logger.WithField("key", key.String()).Debug("Reading descriptor value")
	d.transport.ReadDescriptor(desc)
}

// WriteDescriptor writes value (in codec form) to a descriptor
func (d *Device) WriteDescriptor(service, characteristic, descriptor, value string, timeout time.Duration, cb Callback) {
	key := NewKey(OpWriteDescriptor, service, characteristic, descriptor)
	data, err := codec.DecodeDescriptor(value)
	if err != nil {
		cb(rejected(&OpError{Kind: InvalidValue, Key: key, Msg: err.Error(), Err: err}))
		return
	}
	d.pending.Register(key, cb, timeout)
	if !d.requireConnected(key) {
		return
	}

	desc, ok := d.transport.GetDescriptor(service, characteristic, descriptor)
	if !ok {
		d.pending.Reject(key, newError(NotFound, key, msgDescriptorNotFound))
		return
	}
	d.transport.WriteDescriptor(desc, data)
}

func (d *Device) onDescriptorValue(e ValueUpdated) {
	key := NewKey(OpReadDescriptor, e.Service, e.Characteristic, e.Descriptor)
	if e.Err != nil {
		d.pending.Reject(key, transportError(key, "", e.Err))
		return
	}
	if e.Value == nil {
		d.pending.Reject(key, newError(NoValue, key, msgDescriptorNoValue))
		return
	}
	d.pending.Resolve(key, codec.EncodeDescriptor(e.Value))
}

// ----------------------------
// Notifications
// ----------------------------

// SetNotifications enables or disables notifications on a characteristic. The
// characteristic is located with a targeted discovery before the toggle is sent.
// notify, when non-nil, replaces the delivery handler and receives every value
// (codec.Encode form) until the characteristic is unsubscribed.
//
// Only one request per characteristic may be outstanding; a second one is
// rejected with ErrAlreadyPending until the first completes or times out.
func (d *Device) SetNotifications(service, characteristic string, enable bool, notify NotifyHandler, timeout time.Duration, cb Callback) {
	key := NewKey(OpSetNotifications, service, characteristic)
	if !d.guard.TryAcquire(key) {
		d.logger.WithField("key", key.String()).Warn("Notification request already pending")
		cb(rejected(newError(AlreadyPending, key, msgNotificationPending)))
		return
	}

	notifyKey := NewKey(OpNotification, service, characteristic)
	d.pending.Register(key, func(res Result) {
		d.guard.Release(key)
		if !res.Success() {
			d.sequencer.Cancel(key)
			if enable && notify != nil {
				d.pending.RemoveNotifier(notifyKey)
			}
		}
		cb(res)
	}, timeout)

	if notify != nil {
		d.pending.SetNotifier(notifyKey, notify)
	}

	if !d.requireConnected(key) {
		return
	}

	d.logger.WithFields(logrus.Fields{
		"service":        service,
		"characteristic": characteristic,
		"enable":         enable,
	}).Debug("Setting up notifications")
	d.sequencer.BeginTargeted(key, service, characteristic, enable)
}

func (d *Device) onNotificationState(e NotificationStateChanged) {
	key := NewKey(OpSetNotifications, e.Service, e.Characteristic)
	if e.Err != nil {
		d.pending.Reject(key, transportError(key, msgNotifyStateFailed, e.Err))
		return
	}
	if !e.Notifying {
		d.pending.RemoveNotifier(NewKey(OpNotification, e.Service, e.Characteristic))
	}
	d.pending.Resolve(key, fmt.Sprintf("Successfully set notification state to %t", e.Notifying))
}

// ----------------------------
// Queries
// ----------------------------

// MTU returns the effective ATT MTU: the largest unacknowledged write payload plus the 3-byte ATT header.
func (d *Device) MTU() int {
	return d.transport.MaxWritePayloadSize(WithoutResponse) + 3
}

// IsConnected reports whether the transport holds a live link
func (d *Device) IsConnected() bool {
	return d.transport.IsConnected()
}

// Services returns the discovered services in discovery order
func (d *Device) Services() []Service {
	return d.transport.Services()
}

// Pending returns the number of unresolved operations
func (d *Device) Pending() int {
	return d.pending.Len()
}

// Disconnect tears the link down. Pending operations are rejected when the
// transport reports the disconnection.
func (d *Device) Disconnect() {
	d.transport.Disconnect()
}
