//go:build !windows
// +build !windows

package midiwindows

import (
	"fmt"

	"github.com/leandrodaf/midiports/sdk/contracts"
)

type dummyPortSource struct {
	logger contracts.Logger
}

// NewPortSource returns a source that fails on every listing on non-Windows systems.
func NewPortSource(logger contracts.Logger, clientName string) (contracts.PortSource, error) {
	logger.Info("Using dummy winmm port source for non-Windows system")
	return &dummyPortSource{logger: logger}, nil
}

// ListDevices logs a warning and returns an error indicating that winmm is unavailable on this platform.
func (p *dummyPortSource) ListDevices() ([]contracts.DeviceInfo, error) {
	p.logger.Warn("ListDevices called on dummy winmm port source")
	return nil, fmt.Errorf("winmm is not available on this platform")
}

func (p *dummyPortSource) Close() error {
	return nil
}
