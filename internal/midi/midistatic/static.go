// Package midistatic provides port sources that do not talk to a MIDI driver:
// a fixed list taken from configuration and a fallback chain.
package midistatic

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/midiports/sdk/contracts"
)

// Static serves a fixed port list.
type Static struct {
	mu      sync.RWMutex
	devices []contracts.DeviceInfo
}

// New copies devices into a new Static source.
func New(devices []contracts.DeviceInfo) *Static {
	s := &Static{}
	s.Set(devices)
	return s
}

// Set replaces the served list.
func (s *Static) Set(devices []contracts.DeviceInfo) {
	cp := make([]contracts.DeviceInfo, len(devices))
	copy(cp, devices)

	s.mu.Lock()
	s.devices = cp
	s.mu.Unlock()
}

// ListDevices returns a copy of the configured list, which may be empty.
func (s *Static) ListDevices() ([]contracts.DeviceInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contracts.DeviceInfo, len(s.devices))
	copy(out, s.devices)
	return out, nil
}

// Close is a no-op.
func (s *Static) Close() error {
	return nil
}

// Fallback asks each source in turn and returns the first non-empty listing.
// An empty listing is returned only when no source had ports; an error only
// when every source failed.
type Fallback struct {
	logger  contracts.Logger
	sources []contracts.PortSource
}

// NewFallback chains sources in priority order.
func NewFallback(logger contracts.Logger, sources ...contracts.PortSource) *Fallback {
	return &Fallback{logger: logger, sources: sources}
}

// ListDevices implements contracts.PortSource.
func (f *Fallback) ListDevices() ([]contracts.DeviceInfo, error) {
	var errs []error
	answered := false
	for i, src := range f.sources {
		devices, err := src.ListDevices()
		if err != nil {
			f.logger.Debug("port source failed, trying next",
				f.logger.Field().Int("source", i),
				f.logger.Field().Error("error", err))
			errs = append(errs, err)
			continue
		}
		if len(devices) > 0 {
			return devices, nil
		}
		answered = true
	}
	if answered || len(f.sources) == 0 {
		return []contracts.DeviceInfo{}, nil
	}
	return nil, fmt.Errorf("all port sources failed: %w", errors.Join(errs...))
}

// Close closes every source and returns the joined errors.
func (f *Fallback) Close() error {
	var errs []error
	for _, src := range f.sources {
		if err := src.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
