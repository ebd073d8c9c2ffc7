// Package config provides the configuration system for hvol.
//
// The configuration is organized into logical sections:
//   - Connector: the default connector and its serialized info
//   - Logging: level and encoding of the global logger
//   - Metrics: Prometheus collection toggle
//   - Tracing: OpenTelemetry span export
//   - Native, Passthru: per-connector initialization parameters
//
// Example usage:
//
//	cfg := config.NewConfig()
//	cfg.Native.SnapshotDir = "/var/lib/hvol"
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
)

// Config is the library configuration
type Config struct {
	// Connector selects the default connector for files opened without one
	Connector ConnectorConfig `yaml:"connector" json:"connector"`

	// Logging configures the global logger
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics configures Prometheus collection
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Tracing configures span export
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`

	// Native holds the native connector's initialization parameters
	Native NativeConfig `yaml:"native" json:"native"`

	// Passthru holds the pass-through connector's initialization parameters
	Passthru PassthruConfig `yaml:"passthru" json:"passthru"`
}

// ConnectorConfig names a connector by name or value together with its
// serialized info. Value is -1 when the connector is chosen by name.
type ConnectorConfig struct {
	// Name of the connector; empty selects by Value
	Name string `yaml:"name" json:"name"`
	// Value of the connector, used when Name is empty
	Value int `yaml:"value" json:"value"`
	// Info is decoded by the selected connector's FromString callback
	Info string `yaml:"info" json:"info"`
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	// Level sets logging verbosity (debug, info, warn, error)
	Level string `yaml:"level" json:"level"`
	// Encoding is json or console
	Encoding string `yaml:"encoding" json:"encoding"`
	// Development enables colored levels and stack traces on errors
	Development bool `yaml:"development" json:"development"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	// Enabled toggles Prometheus collection of dispatch metrics
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// TracingConfig contains tracing settings
type TracingConfig struct {
	// Enabled installs a stdout span exporter at startup
	Enabled bool `yaml:"enabled" json:"enabled"`
	// ServiceName is reported on every span
	ServiceName string `yaml:"service_name" json:"service_name"`
	// SampleRate controls trace sampling (0.0-1.0)
	SampleRate float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewConfig creates a Config with defaults: the native connector, warn-level
// JSON logs, metrics on and tracing off.
func NewConfig() *Config {
	return &Config{
		Connector: ConnectorConfig{
			Name:  "native",
			Value: -1,
		},
		Logging: LoggingConfig{
			Level:    "warn",
			Encoding: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "hvol",
			SampleRate:  1.0,
		},
		Native:   NewNativeConfig(),
		Passthru: NewPassthruConfig(),
	}
}

// Validate checks the configuration for correctness
func (c *Config) Validate() error {
	if err := c.Connector.Validate(); err != nil {
		return err
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown log level %q", c.Logging.Level)
	}
	switch c.Logging.Encoding {
	case "json", "console":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown log encoding %q", c.Logging.Encoding)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return errors.Newf(errors.ErrorTypeConfig, "tracing sample_rate %v is outside [0, 1]", c.Tracing.SampleRate)
	}
	if err := c.Passthru.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate checks that the connector is selected by exactly one of name or value
func (cc ConnectorConfig) Validate() error {
	if cc.Name == "" && cc.Value < 0 {
		return errors.New(errors.ErrorTypeConfig, "connector needs a name or a non-negative value")
	}
	return nil
}

// Selector converts the configuration into a registry selector
func (cc ConnectorConfig) Selector() core.Selector {
	if cc.Name != "" {
		return core.ByName(cc.Name)
	}
	return core.ByValue(core.Value(cc.Value))
}

func (cc ConnectorConfig) String() string {
	sel := cc.Selector().String()
	if cc.Info == "" {
		return sel
	}
	return fmt.Sprintf("%s %s", sel, cc.Info)
}

// InitParams returns the initialization parameters handed to the named
// connector when it is registered, or nil when there are none.
func (c *Config) InitParams(name string) any {
	switch name {
	case "native":
		return &c.Native
	case "passthru":
		return &c.Passthru
	default:
		return nil
	}
}
