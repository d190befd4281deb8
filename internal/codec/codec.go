// Package codec converts GATT values between bytes and their text form.
//
// Characteristic values travel as space-separated lowercase hex pairs
// ("0a 1b 2c"); descriptor values as contiguous hex ("0a1b2c"). Decoding
// accepts either form along with ':' and '-' separators and 0x prefixes.
package codec

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Encode renders a characteristic value as space-separated hex pairs.
// An empty or nil value encodes to "".
func Encode(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(data)*3 - 1)
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(hex.EncodeToString([]byte{b}))
	}
	return sb.String()
}

// EncodeDescriptor renders a descriptor value as contiguous hex
func EncodeDescriptor(data []byte) string {
	return hex.EncodeToString(data)
}

// Decode parses text produced by Encode or EncodeDescriptor back into bytes.
// Decode(Encode(b)) and Decode(EncodeDescriptor(b)) return b for every b
// (an empty b comes back empty).
func Decode(text string) ([]byte, error) {
	cleaned := strings.NewReplacer(
		" ", "",
		"\t", "",
		"\n", "",
		":", "",
		"-", "",
		"0x", "",
		"0X", "",
	).Replace(text)

	data, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data %q: %w", text, err)
	}
	return data, nil
}

// DecodeDescriptor parses a descriptor value; it accepts the same input as Decode
func DecodeDescriptor(text string) ([]byte, error) {
	return Decode(text)
}
