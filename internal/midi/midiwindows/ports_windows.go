//go:build windows
// +build windows

package midiwindows

import (
	"fmt"
	"unsafe"

	"github.com/leandrodaf/midiports/sdk/contracts"
	"golang.org/x/sys/windows"
)

// midiInCaps mirrors MIDIINCAPSW.
type midiInCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	dwSupport      uint32
}

var (
	winmm                = windows.NewLazySystemDLL("winmm.dll")
	procMidiInGetNumDevs = winmm.NewProc("midiInGetNumDevs")
	procMidiInGetDevCaps = winmm.NewProc("midiInGetDevCapsW")
)

// PortSource lists winmm MIDI input devices.
type PortSource struct {
	logger contracts.Logger
}

// NewPortSource checks that winmm.dll can be loaded.
func NewPortSource(logger contracts.Logger, clientName string) (contracts.PortSource, error) {
	if err := winmm.Load(); err != nil {
		return nil, fmt.Errorf("loading winmm.dll: %w", err)
	}
	logger.Info("winmm port source created", logger.Field().String("client", clientName))
	return &PortSource{logger: logger}, nil
}

// ListDevices returns one DeviceInfo per winmm input device. Devices whose
// capabilities cannot be read are skipped.
func (p *PortSource) ListDevices() ([]contracts.DeviceInfo, error) {
	r0, _, _ := procMidiInGetNumDevs.Call()
	numDevices := uint32(r0)
	if numDevices == 0 {
		p.logger.Debug("no winmm input devices found")
	}

	devices := make([]contracts.DeviceInfo, 0, numDevices)
	for i := uint32(0); i < numDevices; i++ {
		var caps midiInCaps
		r1, _, _ := procMidiInGetDevCaps.Call(
			uintptr(i),
			uintptr(unsafe.Pointer(&caps)),
			unsafe.Sizeof(caps),
		)
		if r1 != 0 {
			p.logger.Warn("Failed to get information for MIDI device", p.logger.Field().Int("index", int(i)))
			continue
		}
		name := windows.UTF16ToString(caps.szPname[:])
		devices = append(devices, contracts.DeviceInfo{
			ID:           fmt.Sprintf("winmm:%d", i),
			Name:         name,
			EntityName:   name,
			Manufacturer: fmt.Sprintf("MID: %d PID: %d", caps.wMid, caps.wPid),
		})
	}
	return devices, nil
}

// Close releases nothing; winmm handles are only opened for capture.
func (p *PortSource) Close() error {
	return nil
}
