package config

import "errors"

// Domain errors for configuration.
var (
	// ErrMissingCredential indicates a required credential variable is unset.
	ErrMissingCredential = errors.New("missing credential")

	// ErrInvalidConfig indicates configuration validation failed.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConfigNotFound indicates the configuration file was not found.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrUnsupportedFormat indicates the file format is not supported.
	ErrUnsupportedFormat = errors.New("unsupported configuration format")

	// ErrInvalidFormat indicates the configuration file could not be parsed.
	ErrInvalidFormat = errors.New("invalid configuration format")
)
