// Package build holds build-time metadata injected via -ldflags.
package build

var (
	// AppName is the name of the application.
	AppName = "phorecast"

	// Version is the application version, overridden at build time.
	Version = "0.0.0"
)
