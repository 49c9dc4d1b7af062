// Package config loads the device server configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration of the device server.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	MIDI    MIDIConfig    `yaml:"midi"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Listen         string `yaml:"listen"`
	StateFile      string `yaml:"state_file"`
	RequestTimeout int    `yaml:"request_timeout"` // seconds
}

// MIDIConfig selects where the port list comes from.
type MIDIConfig struct {
	ClientName string       `yaml:"client_name"`
	UseSystem  bool         `yaml:"use_system"` // platform port source (CoreMIDI, winmm)
	Ports      []PortConfig `yaml:"ports"`
}

// PortConfig is a statically configured port.
type PortConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads path, applies environment overrides and validates the result.
// An empty path yields the defaults with overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:         "127.0.0.1:8888",
			RequestTimeout: 10,
		},
		MIDI: MIDIConfig{
			ClientName: "midiports",
			UseSystem:  true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIDIPORTS_LISTEN"); v != "" {
		cfg.Server.Listen = v
	}
	if v := os.Getenv("MIDIPORTS_STATE_FILE"); v != "" {
		cfg.Server.StateFile = v
	}
	if v := os.Getenv("MIDIPORTS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	if !c.MIDI.UseSystem && len(c.MIDI.Ports) == 0 {
		return fmt.Errorf("midi.ports must list at least one port when midi.use_system is false")
	}
	seen := make(map[string]bool, len(c.MIDI.Ports))
	for i, p := range c.MIDI.Ports {
		if p.ID == "" {
			return fmt.Errorf("midi.ports[%d].id is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("midi.ports[%d].id %q is duplicated", i, p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// GetRequestTimeout returns the request timeout as a duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeout) * time.Second
}
