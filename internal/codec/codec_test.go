package codec

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{name: "nil", input: nil, expected: ""},
		{name: "empty", input: []byte{}, expected: ""},
		{name: "single byte", input: []byte{0x0a}, expected: "0a"},
		{name: "multiple bytes", input: []byte{0x00, 0xff, 0x1b}, expected: "00 ff 1b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Encode(tt.input))
		})
	}
}

func TestEncodeDescriptor(t *testing.T) {
	assert.Equal(t, "", EncodeDescriptor(nil))
	assert.Equal(t, "0100", EncodeDescriptor([]byte{0x01, 0x00}))
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []byte
	}{
		{name: "simple hex", input: "0102", expected: []byte{0x01, 0x02}},
		{name: "hex with spaces", input: "01 02 03", expected: []byte{0x01, 0x02, 0x03}},
		{name: "hex with colons", input: "01:02:03", expected: []byte{0x01, 0x02, 0x03}},
		{name: "hex with dashes", input: "01-02-03", expected: []byte{0x01, 0x02, 0x03}},
		{name: "hex with 0x prefix", input: "0xAA", expected: []byte{0xaa}},
		{name: "uppercase hex", input: "AA BB", expected: []byte{0xaa, 0xbb}},
		{name: "empty", input: "", expected: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Decode(tt.input)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(tt.expected, data), "expected %x, got %x", tt.expected, data)
		})
	}
}

func TestDecode_Invalid(t *testing.T) {
	for _, input := range []string{"zz", "abc", "0g"} {
		t.Run(input, func(t *testing.T) {
			_, err := Decode(input)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "invalid hex data")
		})
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	samples := [][]byte{nil, {}, {0x00}, {0xff}, {0x0a, 0x00, 0x0d}}
	for i := 0; i < 200; i++ {
		b := make([]byte, rng.Intn(64))
		rng.Read(b)
		samples = append(samples, b)
	}

	for _, b := range samples {
		decoded, err := Decode(Encode(b))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(b, decoded), "characteristic form MUST round-trip %x", b)

		decoded, err = DecodeDescriptor(EncodeDescriptor(b))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(b, decoded), "descriptor form MUST round-trip %x", b)
	}
}
