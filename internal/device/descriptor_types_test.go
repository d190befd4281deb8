package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribeDescriptorValue(t *testing.T) {
	tests := []struct {
		name     string
		uuid     string
		data     []byte
		expected string
	}{
		{"client config notifications", "2902", []byte{0x01, 0x00}, "notifications=true indications=false"},
		{"client config indications full uuid", "00002902-0000-1000-8000-00805f9b34fb", []byte{0x02, 0x00}, "notifications=false indications=true"},
		{"user description null terminated", "2901", []byte("Battery\x00"), `"Battery"`},
		{"extended properties", "2900", []byte{0x01, 0x00}, "reliable_write=true writable_auxiliaries=false"},
		{"server config", "2903", []byte{0x01, 0x00}, "broadcasts=true"},
		{"presentation format", "2904", []byte{0x04, 0xfe, 0xad, 0x27, 0x01, 0x00, 0x00}, "format=0x04 exponent=-2 unit=0x27ad namespace=0x01 description=0x0000"},
		{"valid range", "2906", []byte{0x00, 0x64}, "min=00 max=64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, ok, err := DescribeDescriptorValue(tt.uuid, tt.data)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, tt.expected, desc)
		})
	}

	t.Run("unknown descriptor", func(t *testing.T) {
		_, ok, err := DescribeDescriptorValue("ffff", []byte{1})
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("malformed client config", func(t *testing.T) {
		_, ok, err := DescribeDescriptorValue("2902", []byte{1})
		assert.True(t, ok)
		assert.ErrorContains(t, err, "expected 2, got 1")
	})
}
