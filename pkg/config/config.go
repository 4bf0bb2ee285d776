// Package config loads the storage substrate's on-disk configuration
// file. It reads no command-line flags itself; cmd/slstore layers its
// --log-level and --log-json flags over the loaded log settings.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/stronglink/pkg/log"
)

// Config is the full set of settings slstore needs to open an
// environment and serve requests against it.
type Config struct {
	Env      EnvConfig      `yaml:"env"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Registration RegistrationConfig `yaml:"registration"`
}

// EnvConfig controls Environment.Open.
type EnvConfig struct {
	Path   string `yaml:"path"`
	NoSync bool   `yaml:"nosync"`
}

// LogConfig mirrors log.Config's fields for file-based configuration.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// MetricsConfig controls whether and where the Prometheus metrics
// endpoint listens.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// RegistrationConfig holds the session cache's registration mode, as a
// symbolic name ("rdonly", "rdwr", "admin") rather than a raw bitmask.
type RegistrationConfig struct {
	Mode string `yaml:"mode"`
}

// Default returns the built-in defaults used when no config file is
// present.
func Default() Config {
	return Config{
		Env:     EnvConfig{Path: "./data", NoSync: false},
		Log:     LogConfig{Level: "info", JSON: false},
		Metrics: MetricsConfig{Enabled: true, Addr: ":9090"},
		Registration: RegistrationConfig{Mode: "rdwr"},
	}
}

// Load reads and parses a YAML config file at path, starting from
// Default() so a partial file only overrides what it mentions. A
// missing file is not an error, Load returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithComponent("config").Debug().Str("path", path).Msg("no config file found, using defaults")
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
