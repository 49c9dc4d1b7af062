package contracts

import (
	"net/http"
	"time"
)

// ClientOptions defines the configuration options for the device selection client.
type ClientOptions struct {
	Logger      Logger        // Logger for logging events and errors.
	LogLevel    LogLevel      // Level of logging to use.
	LogFilePath string        // File path for logging if file logging is enabled.
	BaseURL     string        // Root URL of the device server.
	Timeout     time.Duration // Upper bound for a single remote call.
	HTTPClient  *http.Client  // Transport used for remote calls.
	Notifier    Notifier      // Receives user facing error notifications.
	Service     DeviceService // Overrides the HTTP device service when set.
}

// Option is a function that modifies ClientOptions.
type Option func(*ClientOptions)

// WithLogger sets the logger for the client.
func WithLogger(l Logger) Option {
	return func(opts *ClientOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level for the client.
func WithLogLevel(level LogLevel) Option {
	return func(opts *ClientOptions) {
		opts.LogLevel = level
	}
}

// WithLogFile directs logs to the given file.
func WithLogFile(path string) Option {
	return func(opts *ClientOptions) {
		opts.LogFilePath = path
	}
}

// WithBaseURL sets the device server root URL, e.g. "http://localhost:8888".
func WithBaseURL(url string) Option {
	return func(opts *ClientOptions) {
		opts.BaseURL = url
	}
}

// WithTimeout bounds every remote call.
func WithTimeout(d time.Duration) Option {
	return func(opts *ClientOptions) {
		opts.Timeout = d
	}
}

// WithHTTPClient sets the HTTP client used for remote calls.
func WithHTTPClient(c *http.Client) Option {
	return func(opts *ClientOptions) {
		opts.HTTPClient = c
	}
}

// WithNotifier sets where user facing notifications go.
func WithNotifier(n Notifier) Option {
	return func(opts *ClientOptions) {
		opts.Notifier = n
	}
}

// WithDeviceService replaces the HTTP device service, mostly for tests.
func WithDeviceService(s DeviceService) Option {
	return func(opts *ClientOptions) {
		opts.Service = s
	}
}
