//go:build darwin
// +build darwin

package mididarwin

import (
	"fmt"
	"sync"

	"github.com/leandrodaf/midiports/sdk/contracts"
	"github.com/youpy/go-coremidi"
)

// PortSource lists CoreMIDI sources on macOS.
// The CoreMIDI client is created once and kept for the lifetime of the source
// so that hot-plugged sources show up on the next listing.
type PortSource struct {
	logger contracts.Logger
	client coremidi.Client
	mu     sync.Mutex
}

// NewPortSource creates a CoreMIDI client named after the configured client name.
func NewPortSource(logger contracts.Logger, clientName string) (contracts.PortSource, error) {
	client, err := coremidi.NewClient(clientName)
	if err != nil {
		return nil, fmt.Errorf("creating CoreMIDI client: %w", err)
	}
	logger.Info("CoreMIDI port source created", logger.Field().String("client", clientName))

	return &PortSource{logger: logger, client: client}, nil
}

// ListDevices returns one DeviceInfo per CoreMIDI source, in CoreMIDI order.
// A host without sources yields an empty list.
func (p *PortSource) ListDevices() ([]contracts.DeviceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI sources: %w", err)
	}
	if len(sources) == 0 {
		p.logger.Debug("no CoreMIDI sources found")
	}

	devices := make([]contracts.DeviceInfo, len(sources))
	for i, source := range sources {
		entity := source.Entity()
		devices[i] = contracts.DeviceInfo{
			ID:           fmt.Sprintf("coremidi:%d:%s", i, source.Name()),
			Name:         source.Name(),
			EntityName:   entity.Name(),
			Manufacturer: entity.Manufacturer(),
		}
	}
	return devices, nil
}

// Close is a no-op; go-coremidi does not expose client disposal.
func (p *PortSource) Close() error {
	return nil
}
