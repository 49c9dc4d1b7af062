package contracts

// DeviceInfo contains information about a MIDI port as reported by a PortSource.
type DeviceInfo struct {
	ID           string // Opaque identifier used on the wire (e.g. "hw:0").
	Name         string // Human readable port name.
	Manufacturer string // Device manufacturer, when the platform reports one.
	EntityName   string // Name of the entity to which the port belongs.
}

// DisplayName returns the name shown to users, falling back to the ID.
func (d DeviceInfo) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// PortSource lists the MIDI ports available on the host.
type PortSource interface {
	ListDevices() ([]DeviceInfo, error) // Lists all available MIDI input ports.
	Close() error                       // Releases platform resources.
}
