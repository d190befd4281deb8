package device

// Event is raised by a Transport when an issued command produces a result.
// The set of variants is closed; every variant carries the identifiers needed
// to rebuild the Key of the request that caused it.
type Event interface {
	isEvent()
}

// Connected reports the outcome of Transport.Connect
type Connected struct {
	Err error
}

// Disconnected reports link loss or completion of Transport.Disconnect
type Disconnected struct {
	Err error
}

// ServicesDiscovered reports completion of service discovery. Filter echoes
// the service identifiers that were requested (empty for full discovery).
type ServicesDiscovered struct {
	Filter []string
	Err    error
}

// CharacteristicsDiscovered reports completion of characteristic discovery for one service.
type CharacteristicsDiscovered struct {
	Service string
	Filter  []string
	Err     error
}

// DescriptorsDiscovered reports completion of descriptor discovery for one characteristic.
type DescriptorsDiscovered struct {
	Service        string
	Characteristic string
	Err            error
}

// ValueUpdated carries a value read from, or notified by, a characteristic or
// (when Descriptor is set) a descriptor. Value is nil when no payload arrived.
type ValueUpdated struct {
	Service        string
	Characteristic string
	Descriptor     string
	Value          []byte
	Err            error
}

// ValueWritten acknowledges a write to a characteristic or (when Descriptor is set) a descriptor.
type ValueWritten struct {
	Service        string
	Characteristic string
	Descriptor     string
	Err            error
}

// NotificationStateChanged acknowledges a notify toggle
type NotificationStateChanged struct {
	Service        string
	Characteristic string
	Notifying      bool
	Err            error
}

// RSSIRead carries a signal strength reading
type RSSIRead struct {
	RSSI int
	Err  error
}

func (Connected) isEvent()                 {}
func (Disconnected) isEvent()              {}
func (ServicesDiscovered) isEvent()        {}
func (CharacteristicsDiscovered) isEvent() {}
func (DescriptorsDiscovered) isEvent()     {}
func (ValueUpdated) isEvent()              {}
func (ValueWritten) isEvent()              {}
func (NotificationStateChanged) isEvent()  {}
func (RSSIRead) isEvent()                  {}
