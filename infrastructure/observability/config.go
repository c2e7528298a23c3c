// Package observability provides OpenTelemetry tracing and the stage
// observers that log, trace and account for each analysis.
package observability

import (
	"time"

	domainconfig "github.com/felixgeelhaar/adcompliance/domain/config"
)

// Config configures the tracer provider.
type Config struct {
	// ServiceName is the name of the service for telemetry.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// Exporter specifies the trace exporter type.
	Exporter ExporterType

	// Endpoint is the OTLP endpoint (e.g., "localhost:4317").
	Endpoint string

	// Insecure disables TLS for the exporter connection.
	Insecure bool

	// SampleRate is the sampling rate (0.0-1.0, default: 1.0).
	SampleRate float64

	// BatchTimeout is the batch export timeout.
	BatchTimeout time.Duration
}

// ExporterType specifies the trace exporter.
type ExporterType string

const (
	// ExporterOTLP exports to an OTLP gRPC endpoint.
	ExporterOTLP ExporterType = "otlp"

	// ExporterStdout exports to stdout (useful for development).
	ExporterStdout ExporterType = "stdout"

	// ExporterNone disables export.
	ExporterNone ExporterType = "none"
)

// DefaultConfig returns a default configuration with export disabled.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "adcompliance",
		ServiceVersion: "dev",
		Exporter:       ExporterNone,
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
	}
}

// FromAppConfig maps the telemetry section of the application config.
func FromAppConfig(cfg domainconfig.TelemetryConfig, version string) Config {
	c := DefaultConfig()
	if version != "" {
		c.ServiceVersion = version
	}
	if cfg.Exporter != "" {
		c.Exporter = ExporterType(cfg.Exporter)
	}
	c.Endpoint = cfg.Endpoint
	c.Insecure = true
	c.SampleRate = cfg.SampleRate
	return c
}

// Option configures the tracer provider.
type Option func(*Config)

// WithServiceName sets the service name.
func WithServiceName(name string) Option {
	return func(c *Config) {
		c.ServiceName = name
	}
}

// WithStdout exports spans to stdout.
func WithStdout() Option {
	return func(c *Config) {
		c.Exporter = ExporterStdout
	}
}

// WithOTLP exports spans to an OTLP gRPC endpoint.
func WithOTLP(endpoint string, insecure bool) Option {
	return func(c *Config) {
		c.Exporter = ExporterOTLP
		c.Endpoint = endpoint
		c.Insecure = insecure
	}
}

// WithSampleRate sets the trace sampling rate.
func WithSampleRate(rate float64) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}
