//go:build !darwin
// +build !darwin

package mididarwin

import (
	"fmt"

	"github.com/leandrodaf/midiports/sdk/contracts"
)

type dummyPortSource struct {
	logger contracts.Logger
}

// NewPortSource returns a source that fails on every listing on non-macOS systems.
func NewPortSource(logger contracts.Logger, clientName string) (contracts.PortSource, error) {
	logger.Info("Using dummy CoreMIDI port source for non-macOS system")
	return &dummyPortSource{logger: logger}, nil
}

func (p *dummyPortSource) ListDevices() ([]contracts.DeviceInfo, error) {
	p.logger.Warn("ListDevices called on dummy CoreMIDI port source")
	return nil, fmt.Errorf("CoreMIDI is not available on this platform")
}

func (p *dummyPortSource) Close() error {
	return nil
}
