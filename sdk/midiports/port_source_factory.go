package midiports

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/leandrodaf/midiports/internal/midi/mididarwin"
	"github.com/leandrodaf/midiports/internal/midi/midistatic"
	"github.com/leandrodaf/midiports/internal/midi/midiwindows"
	"github.com/leandrodaf/midiports/sdk/contracts"
)

// ErrUnsupportedOS is returned when no platform port source exists for the running OS.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// sourceInitializers maps OS names to platform port source constructors.
var sourceInitializers = map[string]func(contracts.Logger, string) (contracts.PortSource, error){
	"darwin":  mididarwin.NewPortSource,  // CoreMIDI
	"windows": midiwindows.NewPortSource, // winmm
}

// NewSystemPortSource returns the port source for the current operating system.
func NewSystemPortSource(logger contracts.Logger, clientName string) (contracts.PortSource, error) {
	if initializer, exists := sourceInitializers[runtime.GOOS]; exists {
		return initializer(logger, clientName)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, runtime.GOOS)
}

// NewPortSource builds the server port source: the platform source when
// useSystem is set and available, followed by the static ports. Without
// either the source serves an empty list.
func NewPortSource(logger contracts.Logger, clientName string, useSystem bool, static []contracts.DeviceInfo) (contracts.PortSource, error) {
	var sources []contracts.PortSource
	if useSystem {
		sys, err := NewSystemPortSource(logger, clientName)
		if err == nil {
			sources = append(sources, sys)
		} else {
			logger.Warn("platform MIDI port source unavailable, using static ports",
				logger.Field().Error("error", err),
				logger.Field().Int("static_ports", len(static)))
		}
	}
	if len(static) > 0 || len(sources) == 0 {
		sources = append(sources, midistatic.New(static))
	}
	if len(sources) == 1 {
		return sources[0], nil
	}
	return midistatic.NewFallback(logger, sources...), nil
}
