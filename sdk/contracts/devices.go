package contracts

import (
	"context"
	"encoding/json"
)

// RoutingMode selects how physical MIDI ports are exposed.
type RoutingMode int

const (
	// Aggregated merges every selected physical port into a single logical port.
	Aggregated RoutingMode = iota
	// Separated keeps each selected physical port as an independent logical port.
	Separated
)

// ModeFromAggregated converts the wire flag into a RoutingMode.
func ModeFromAggregated(aggregated bool) RoutingMode {
	if aggregated {
		return Aggregated
	}
	return Separated
}

// IsAggregated reports the wire flag for the mode.
func (m RoutingMode) IsAggregated() bool {
	return m == Aggregated
}

func (m RoutingMode) String() string {
	if m == Aggregated {
		return "aggregated"
	}
	return "separated"
}

// DeviceState is the payload returned by GetDevices.
type DeviceState struct {
	DevsInUse          []string          `json:"devsInUse"`
	DevList            []string          `json:"devList"`
	Names              map[string]string `json:"names"`
	MidiAggregatedMode bool              `json:"midiAggregatedMode"`
}

// Mode returns the routing mode carried by the state.
func (s DeviceState) Mode() RoutingMode {
	return ModeFromAggregated(s.MidiAggregatedMode)
}

// Selection is the payload sent by SetDevices.
type Selection struct {
	Devs               []string `json:"devs"`
	MidiAggregatedMode bool     `json:"midiAggregatedMode"`
}

// MarshalJSON always emits devs as an array, never null.
func (s Selection) MarshalJSON() ([]byte, error) {
	type wire Selection
	w := wire(s)
	if w.Devs == nil {
		w.Devs = []string{}
	}
	return json.Marshal(w)
}

// Mode returns the routing mode carried by the selection.
func (s Selection) Mode() RoutingMode {
	return ModeFromAggregated(s.MidiAggregatedMode)
}

// DeviceService is the remote collaborator of the selection dialog.
type DeviceService interface {
	GetDevices(ctx context.Context) (DeviceState, error)
	SetDevices(ctx context.Context, sel Selection) error
}
