package device

import "strings"

// Op tags the kind of operation a Key correlates.
type Op string

const (
	OpConnect          Op = "connect"
	OpDiscoverServices Op = "discoverServices"
	OpReadRSSI         Op = "readRssi"
	OpRead             Op = "read"
	OpWrite            Op = "write"
	OpReadDescriptor   Op = "readDescriptor"
	OpWriteDescriptor  Op = "writeDescriptor"
	OpSetNotifications Op = "setNotifications"
	OpNotification     Op = "notification"
)

// Key identifies one in-flight operation. Identifier components are stored in
// canonical form, so a key built from caller input and one rebuilt from an
// inbound event compare equal when they address the same attribute.
//
// Key is comparable and is used directly as a map key.
type Key struct {
	Op             Op
	Service        string
	Characteristic string
	Descriptor     string
}

// NewKey builds a Key from an operation tag and up to three identifiers
// (service, characteristic, descriptor). Extra identifiers are ignored.
func NewKey(op Op, ids ...string) Key {
	k := Key{Op: op}
	for i, id := range ids {
		switch i {
		case 0:
			k.Service = NormalizeUUID(id)
		case 1:
			k.Characteristic = NormalizeUUID(id)
		case 2:
			k.Descriptor = NormalizeUUID(id)
		}
	}
	return k
}

// String renders the key as "op|service|characteristic|descriptor", omitting empty components.
func (k Key) String() string {
	parts := []string{string(k.Op)}
	for _, id := range []string{k.Service, k.Characteristic, k.Descriptor} {
		if id != "" {
			parts = append(parts, id)
		}
	}
	return strings.Join(parts, "|")
}
