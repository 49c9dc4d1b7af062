package midiports

import (
	"net/http"

	"github.com/leandrodaf/midiports/internal/dialog"
	"github.com/leandrodaf/midiports/internal/logger"
	"github.com/leandrodaf/midiports/sdk/contracts"
)

// DefaultBaseURL is where the device server listens by default.
const DefaultBaseURL = "http://127.0.0.1:8888"

// applyDefaultOptions sets default values for ClientOptions if not explicitly provided.
//
// opts ...contracts.Option: A variadic list of option functions that can modify ClientOptions.
//
// Returns:
//   - contracts.ClientOptions: A structure containing the finalized client options with defaults applied.
//   - error: An error if there was an issue applying the options.
func applyDefaultOptions(opts ...contracts.Option) (contracts.ClientOptions, error) {
	options := &contracts.ClientOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.BaseURL == "" {
		options.BaseURL = DefaultBaseURL
	}
	if options.Timeout <= 0 {
		options.Timeout = dialog.DefaultTimeout
	}
	if options.HTTPClient == nil {
		options.HTTPClient = &http.Client{Timeout: options.Timeout}
	}
	if options.Notifier == nil {
		options.Notifier = dialog.LogNotifier(options.Logger)
	}

	options.Logger.SetLevel(options.LogLevel)
	if options.LogFilePath != "" {
		options.Logger.SetDestination(contracts.FileLog, options.LogFilePath)
	}
	return *options, nil
}
