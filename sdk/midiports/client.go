package midiports

import (
	"fmt"

	"github.com/leandrodaf/midiports/internal/dialog"
	"github.com/leandrodaf/midiports/internal/remote"
	"github.com/leandrodaf/midiports/sdk/contracts"
)

// NewDeviceSelectionDialog creates a hidden MIDI port selection dialog bound
// to the device server at the configured base URL.
//
// opts ...contracts.Option: A variadic list of option functions to customize the client configuration.
//
// Returns:
//   - *dialog.Dialog: The dialog controller; call Open to load and show it.
//   - error: An error if the options are invalid.
func NewDeviceSelectionDialog(opts ...contracts.Option) (*dialog.Dialog, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	svc := options.Service
	if svc == nil {
		svc, err = NewDeviceService(&options)
		if err != nil {
			return nil, err
		}
	}

	return dialog.New(dialog.Config{
		Service:  svc,
		Logger:   options.Logger,
		Notifier: options.Notifier,
		Timeout:  options.Timeout,
	})
}

// NewDeviceService returns the HTTP implementation of contracts.DeviceService.
func NewDeviceService(options *contracts.ClientOptions) (contracts.DeviceService, error) {
	c, err := remote.NewClient(options.BaseURL, options.HTTPClient, options.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating device service: %w", err)
	}
	return c, nil
}
