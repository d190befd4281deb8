package device

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed operation
type ErrorKind string

const (
	NotFound               ErrorKind = "not_found"
	TransportError         ErrorKind = "transport_error"
	Timeout                ErrorKind = "timeout"
	AlreadyPending         ErrorKind = "already_pending"
	NoValue                ErrorKind = "no_value"
	NotConnected           ErrorKind = "not_connected"
	Superseded             ErrorKind = "superseded"
	PeripheralDisconnected ErrorKind = "disconnected"
	InvalidValue           ErrorKind = "invalid_value"
)

// OpError is the failure delivered through a Callback. Its Error text is the
// human-readable message of the (success, message) completion contract.
type OpError struct {
	Kind ErrorKind
	Key  Key
	Msg  string
	Err  error // underlying transport error, if any
}

// Error implements the error interface
func (e *OpError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Kind)
	}
	return e.Msg
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is to compare OpError values by Kind
func (e *OpError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*OpError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Predefined sentinel errors, one per kind
var (
	ErrNotFound       = &OpError{Kind: NotFound}
	ErrTransport      = &OpError{Kind: TransportError}
	ErrTimeout        = &OpError{Kind: Timeout}
	ErrAlreadyPending = &OpError{Kind: AlreadyPending}
	ErrNoValue        = &OpError{Kind: NoValue}
	ErrNotConnected   = &OpError{Kind: NotConnected}
	ErrSuperseded     = &OpError{Kind: Superseded}
	ErrDisconnected   = &OpError{Kind: PeripheralDisconnected}
	ErrInvalidValue   = &OpError{Kind: InvalidValue}
)

// IsKind reports whether err is an OpError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var oerr *OpError
	if errors.As(err, &oerr) {
		return oerr.Kind == kind
	}
	return false
}

func newError(kind ErrorKind, key Key, msg string) *OpError {
	return &OpError{Kind: kind, Key: key, Msg: msg}
}

// transportError wraps a failure reported by the transport. The message is passed through,
// optionally prefixed.
func transportError(key Key, prefix string, err error) *OpError {
	msg := err.Error()
	if prefix != "" {
		msg = fmt.Sprintf("%s: %s", prefix, msg)
	}
	return &OpError{Kind: TransportError, Key: key, Msg: msg, Err: err}
}

// Messages delivered with failed completions
const (
	msgCharacteristicNotFound = "Characteristic not found."
	msgDescriptorNotFound     = "Descriptor not found."
	msgServiceNotFound        = "Service not found."
	msgCharacteristicNoValue  = "Characteristic contains no value."
	msgDescriptorNoValue      = "Descriptor contains no value."
	msgNotificationPending    = "Notification request is pending for this characteristic."
	msgNotConnected           = "Peripheral is not connected."
	msgDisconnected           = "Peripheral disconnected."
	msgSuperseded             = "Operation superseded by a newer request."
	msgNotifyStateFailed      = "Failed to update notification state"
)

// timeoutMessages maps each timed operation to its timeout message
var timeoutMessages = map[Op]string{
	OpConnect:          "Connection timeout.",
	OpDiscoverServices: "Service discovery timeout.",
	OpReadRSSI:         "Reading RSSI timeout.",
	OpRead:             "Read timeout.",
	OpWrite:            "Write timeout.",
	OpReadDescriptor:   "Read descriptor timeout.",
	OpWriteDescriptor:  "Write descriptor timeout.",
	OpSetNotifications: "Set notifications timeout.",
}

func timeoutError(key Key) *OpError {
	msg, ok := timeoutMessages[key.Op]
	if !ok {
		msg = fmt.Sprintf("%s timeout.", key.Op)
	}
	return newError(Timeout, key, msg)
}
