package bledb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name     string
		lookup   func(string) (string, bool)
		uuid     string
		expected string
	}{
		{"service short form", LookupService, "180d", "Heart Rate"},
		{"service 0x prefix", LookupService, "0x180F", "Battery Service"},
		{"service full SIG uuid", LookupService, "0000180f-0000-1000-8000-00805f9b34fb", "Battery Service"},
		{"vendor service", LookupService, "6E400001-B5A3-F393-E0A9-E50E24DCCA9E", "Nordic UART Service"},
		{"characteristic", LookupCharacteristic, "2A19", "Battery Level"},
		{"descriptor", LookupDescriptor, "2902", "Client Characteristic Configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, ok := tt.lookup(tt.uuid)
			assert.True(t, ok)
			assert.Equal(t, tt.expected, name)
		})
	}
}

func TestLookupUnknown(t *testing.T) {
	_, ok := LookupService("ffff")
	assert.False(t, ok)

	// Tables are per attribute kind
	_, ok = LookupCharacteristic("180d")
	assert.False(t, ok)
}
