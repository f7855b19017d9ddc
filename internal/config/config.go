// Package config loads the application configuration from a YAML file,
// environment variables and defaults, in that order of precedence.
package config

import (
	"fmt"
	"time"

	"github.com/smart-resource-management-trier/phorecast/internal/persistence/influxstore"
)

// Config is the validated application configuration.
type Config struct {
	Global   Global
	Paths    Paths
	Store    Store
	Engine   Engine
	Frontend Frontend

	// Warnings collected while resolving the configuration.
	Warnings []string

	// ConfigFileUsed is the path of the file the values came from, empty
	// when running on defaults only.
	ConfigFileUsed string
}

// Global holds process-wide settings.
type Global struct {
	Debug     bool
	LogFormat string
	Quiet     bool
}

// Paths locates the writable directories and files.
type Paths struct {
	DataDir      string
	ArtifactDir  string
	MetadataFile string
}

// Store selects and configures the time-series backend.
type Store struct {
	// Backend is "memory" or "influxdb".
	Backend string

	InfluxDB influxstore.Config
}

// Engine tunes the cycle scheduling.
type Engine struct {
	Interval      time.Duration
	Schedule      string
	MaxActiveRuns int
}

// Frontend configures the HTTP API.
type Frontend struct {
	Host      string
	Port      int
	AuthToken string
}

// Validate checks cross-field constraints the loader cannot express.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory":
	case "influxdb":
		if c.Store.InfluxDB.URL == "" {
			return fmt.Errorf("store.influxdb.url is required for the influxdb backend")
		}
		if c.Store.InfluxDB.Bucket == "" {
			return fmt.Errorf("store.influxdb.bucket is required for the influxdb backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Engine.Interval <= 0 && c.Engine.Schedule == "" {
		return fmt.Errorf("engine.interval must be positive when no schedule is set")
	}
	if c.Engine.MaxActiveRuns < 0 {
		return fmt.Errorf("engine.maxActiveRuns cannot be negative")
	}
	if c.Frontend.Port < 0 || c.Frontend.Port > 65535 {
		return fmt.Errorf("frontend.port %d is out of range", c.Frontend.Port)
	}
	return nil
}
