// Package adcompliance provides the version information of the analyzer.
package adcompliance

// Version is the current version of adcompliance.
const Version = "0.1.0"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
