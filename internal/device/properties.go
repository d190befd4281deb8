package device

import "strings"

// Properties is the characteristic properties bit field as defined by the
// Bluetooth Core Specification (Vol 3, Part G, 3.3.1.1).
type Properties uint8

const (
	PropBroadcast            Properties = 0x01
	PropRead                 Properties = 0x02
	PropWriteWithoutResponse Properties = 0x04
	PropWrite                Properties = 0x08
	PropNotify               Properties = 0x10
	PropIndicate             Properties = 0x20
	PropSignedWrite          Properties = 0x40
	PropExtended             Properties = 0x80
)

var propertyNames = []struct {
	prop Properties
	name string
}{
	{PropBroadcast, "Broadcast"},
	{PropRead, "Read"},
	{PropWriteWithoutResponse, "WriteWithoutResponse"},
	{PropWrite, "Write"},
	{PropNotify, "Notify"},
	{PropIndicate, "Indicate"},
	{PropSignedWrite, "AuthenticatedSignedWrites"},
	{PropExtended, "ExtendedProperties"},
}

// Has reports whether every bit of p2 is set in p
func (p Properties) Has(p2 Properties) bool {
	return p&p2 == p2
}

// CanNotify reports whether the characteristic supports notifications or indications
func (p Properties) CanNotify() bool {
	return p&(PropNotify|PropIndicate) != 0
}

// Names returns the human-readable names of the set bits in specification order
func (p Properties) Names() []string {
	var names []string
	for _, pn := range propertyNames {
		if p.Has(pn.prop) {
			names = append(names, pn.name)
		}
	}
	return names
}

func (p Properties) String() string {
	return strings.Join(p.Names(), ",")
}
