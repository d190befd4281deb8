package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/srg/blegatt/internal/device"
	goble "github.com/srg/blegatt/internal/device/go-ble"
)

// Command-level errors
var (
	// ErrConnectionLost indicates the BLE link dropped while a command was still running.
	ErrConnectionLost = errors.New("connection lost")
)

// FormatUserError turns an error chain into a one-line message for the terminal.
func FormatUserError(err error) string {
	var opErr *device.OpError
	switch {
	case errors.Is(err, goble.ErrBluetoothOff):
		return "Bluetooth is turned off or unavailable; enable it and try again"
	case errors.Is(err, context.DeadlineExceeded):
		return "operation did not complete in time"
	case errors.Is(err, ErrConnectionLost):
		return "connection to the peripheral was lost"
	case errors.As(err, &opErr):
		return fmt.Sprintf("%s (%s)", opErr.Error(), opErr.Kind)
	default:
		return err.Error()
	}
}
