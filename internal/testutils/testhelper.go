package testutils

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/srg/blegatt/internal/device"
)

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a test helper with a debug-level logger.
func NewTestHelper(t *testing.T) *TestHelper {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	return &TestHelper{
		T:      t,
		Logger: logger,
	}
}

func CreateMockPeripheralDevice() *PeripheralDeviceBuilder {
	return NewPeripheralDeviceBuilder()
}

func CreateMockPeripheralDeviceFromJSON(jsonStrFmt string, args ...interface{}) *PeripheralDeviceBuilder {
	return NewPeripheralDeviceBuilder().FromJSON(jsonStrFmt, args...)
}

// CaptureResults returns a callback collecting every completion it receives.
// The engine promises one completion per callback, so tests assert len == 1.
func CaptureResults() (device.Callback, *[]device.Result) {
	var results []device.Result
	return func(r device.Result) {
		results = append(results, r)
	}, &results
}
