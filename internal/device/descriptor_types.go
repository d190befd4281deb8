package device

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Well-known GATT descriptor UUIDs (16-bit short form)
const (
	DescriptorExtendedProperties = "2900"
	DescriptorUserDescription    = "2901"
	DescriptorClientConfig       = "2902"
	DescriptorServerConfig       = "2903"
	DescriptorPresentationFormat = "2904"
	DescriptorValidRange         = "2906"
)

// ClientConfig is the Client Characteristic Configuration descriptor (0x2902)
type ClientConfig struct {
	Notifications bool
	Indications   bool
}

func (c ClientConfig) String() string {
	return fmt.Sprintf("notifications=%t indications=%t", c.Notifications, c.Indications)
}

// PresentationFormat is the Characteristic Presentation Format descriptor (0x2904)
type PresentationFormat struct {
	Format      uint8
	Exponent    int8
	Unit        uint16
	Namespace   uint8
	Description uint16
}

func (p PresentationFormat) String() string {
	return fmt.Sprintf("format=0x%02x exponent=%d unit=0x%04x namespace=0x%02x description=0x%04x",
		p.Format, p.Exponent, p.Unit, p.Namespace, p.Description)
}

// ParseClientConfig parses the 2-byte CCCD: bit 0 = notifications, bit 1 = indications.
func ParseClientConfig(data []byte) (ClientConfig, error) {
	if len(data) != 2 {
		return ClientConfig{}, fmt.Errorf("invalid length for client config: expected 2, got %d", len(data))
	}
	value := binary.LittleEndian.Uint16(data)
	return ClientConfig{
		Notifications: value&0x0001 != 0,
		Indications:   value&0x0002 != 0,
	}, nil
}

// ParseUserDescription parses the UTF-8 user description, dropping null termination.
func ParseUserDescription(data []byte) (string, error) {
	str := strings.TrimRight(string(data), "\x00")
	if !utf8.ValidString(str) {
		return "", fmt.Errorf("invalid UTF-8 in user description")
	}
	return str, nil
}

// ParsePresentationFormat parses the 7-byte presentation format:
// Format(1), Exponent(1), Unit(2), Namespace(1), Description(2).
func ParsePresentationFormat(data []byte) (PresentationFormat, error) {
	if len(data) != 7 {
		return PresentationFormat{}, fmt.Errorf("invalid length for presentation format: expected 7, got %d", len(data))
	}
	return PresentationFormat{
		Format:      data[0],
		Exponent:    int8(data[1]),
		Unit:        binary.LittleEndian.Uint16(data[2:4]),
		Namespace:   data[4],
		Description: binary.LittleEndian.Uint16(data[5:7]),
	}, nil
}

// DescribeDescriptorValue renders a well-known descriptor value in human-readable
// form. ok is false for descriptors it does not know how to decode.
func DescribeDescriptorValue(uuid string, data []byte) (desc string, ok bool, err error) {
	switch NormalizeUUID(uuid) {
	case DescriptorExtendedProperties:
		if len(data) != 2 {
			return "", true, fmt.Errorf("invalid length for extended properties: expected 2, got %d", len(data))
		}
		v := binary.LittleEndian.Uint16(data)
		return fmt.Sprintf("reliable_write=%t writable_auxiliaries=%t", v&0x0001 != 0, v&0x0002 != 0), true, nil
	case DescriptorUserDescription:
		s, err := ParseUserDescription(data)
		return fmt.Sprintf("%q", s), true, err
	case DescriptorClientConfig:
		cc, err := ParseClientConfig(data)
		if err != nil {
			return "", true, err
		}
		return cc.String(), true, nil
	case DescriptorServerConfig:
		if len(data) != 2 {
			return "", true, fmt.Errorf("invalid length for server config: expected 2, got %d", len(data))
		}
		return fmt.Sprintf("broadcasts=%t", binary.LittleEndian.Uint16(data)&0x0001 != 0), true, nil
	case DescriptorPresentationFormat:
		pf, err := ParsePresentationFormat(data)
		if err != nil {
			return "", true, err
		}
		return pf.String(), true, nil
	case DescriptorValidRange:
		if len(data) < 2 {
			return "", true, fmt.Errorf("invalid length for valid range: expected at least 2, got %d", len(data))
		}
		mid := len(data) / 2
		return fmt.Sprintf("min=% x max=% x", data[:mid], data[mid:]), true, nil
	default:
		return "", false, nil
	}
}
