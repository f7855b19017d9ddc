package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/smart-resource-management-trier/phorecast/internal/build"
	"github.com/smart-resource-management-trier/phorecast/internal/persistence/influxstore"
)

// Load creates a configuration by instantiating a ConfigLoader with the
// provided options and invoking its Load method.
func Load(opts ...ConfigLoaderOption) (*Config, error) {
	loader := NewConfigLoader(opts...)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// ConfigLoader reads and merges configuration from file, environment and
// defaults. The internal mutex keeps Load safe for concurrent callers
// because viper state is global.
type ConfigLoader struct {
	lock       sync.Mutex
	configFile string
	warnings   []string
}

// ConfigLoaderOption is a functional option for a ConfigLoader.
type ConfigLoaderOption func(*ConfigLoader)

// WithConfigFile sets an explicit configuration file path.
func WithConfigFile(configFile string) ConfigLoaderOption {
	return func(l *ConfigLoader) {
		l.configFile = configFile
	}
}

// NewConfigLoader creates a loader and applies all options.
func NewConfigLoader(options ...ConfigLoaderOption) *ConfigLoader {
	loader := &ConfigLoader{}
	for _, option := range options {
		option(loader)
	}
	return loader
}

// Load initializes viper, reads the configuration file and returns a
// built and validated Config.
func (l *ConfigLoader) Load() (*Config, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	v := viper.New()
	l.setupViper(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var def Definition
	if err := v.Unmarshal(&def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg, err := l.buildConfig(def)
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}

	cfg.Warnings = l.warnings
	cfg.ConfigFileUsed = v.ConfigFileUsed()
	return cfg, nil
}

func (l *ConfigLoader) setupViper(v *viper.Viper) {
	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName(build.AppName)
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, build.AppName))
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(strings.ToUpper(build.AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	dataDir := filepath.Join(xdg.DataHome, build.AppName)
	v.SetDefault("logFormat", "text")
	v.SetDefault("paths.dataDir", dataDir)
	v.SetDefault("store.backend", "memory")
	v.SetDefault("engine.interval", "1h")
	v.SetDefault("engine.maxActiveRuns", 4)
	v.SetDefault("frontend.host", "127.0.0.1")
	v.SetDefault("frontend.port", 8090)
}

// buildConfig transforms the raw Definition into the final Config.
func (l *ConfigLoader) buildConfig(def Definition) (*Config, error) {
	cfg := &Config{
		Global: Global{
			Debug:     def.Debug,
			LogFormat: def.LogFormat,
			Quiet:     def.Quiet,
		},
		Paths: Paths{
			DataDir:      def.Paths.DataDir,
			ArtifactDir:  def.Paths.ArtifactDir,
			MetadataFile: def.Paths.MetadataFile,
		},
		Store: Store{
			Backend: def.Store.Backend,
			InfluxDB: influxstore.Config{
				URL:    def.Store.InfluxDB.URL,
				Token:  def.Store.InfluxDB.Token,
				Org:    def.Store.InfluxDB.Org,
				Bucket: def.Store.InfluxDB.Bucket,
			},
		},
		Engine: Engine{
			Schedule:      def.Engine.Schedule,
			MaxActiveRuns: def.Engine.MaxActiveRuns,
		},
		Frontend: Frontend{
			Host:      def.Frontend.Host,
			Port:      def.Frontend.Port,
			AuthToken: def.Frontend.AuthToken,
		},
	}

	if def.Engine.Interval != "" {
		interval, err := time.ParseDuration(def.Engine.Interval)
		if err != nil {
			return nil, fmt.Errorf("invalid engine.interval %q: %w", def.Engine.Interval, err)
		}
		cfg.Engine.Interval = interval
	}

	// Derived paths default below the data directory.
	if cfg.Paths.ArtifactDir == "" {
		cfg.Paths.ArtifactDir = filepath.Join(cfg.Paths.DataDir, "models")
	}
	if cfg.Paths.MetadataFile == "" {
		cfg.Paths.MetadataFile = filepath.Join(cfg.Paths.DataDir, "components.json")
	}

	if cfg.Store.Backend == "memory" && cfg.Store.InfluxDB.URL != "" {
		l.warnings = append(l.warnings,
			"store.influxdb settings are ignored with the memory backend")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
