// Package config loads relay and client configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Relay holds the relay daemon configuration.
type Relay struct {
	// Listen is the host:port the relay binds to.
	Listen string `yaml:"listen"`
	// Token is the bearer token clients must present. Empty disables auth,
	// which is only acceptable for local development.
	Token string `yaml:"token"`
	// DBPath is the SQLite file for event history.
	DBPath string `yaml:"db_path"`
	// RecentPerRoom caps the in-memory recent-frame ring per room.
	RecentPerRoom int `yaml:"recent_per_room"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// LogJSON switches to structured JSON log output.
	LogJSON bool `yaml:"log_json"`
}

// Client holds the defaults the pulse-tail CLI connects with.
type Client struct {
	// URL is the relay websocket endpoint, e.g. ws://localhost:8080/api/attach.
	URL string `yaml:"url"`
	// Token is the bearer token attached at connect time.
	Token string `yaml:"token"`
	// BackoffBase is the initial reconnect delay.
	BackoffBase Duration `yaml:"backoff_base"`
	// BackoffCap is the maximum reconnect delay.
	BackoffCap Duration `yaml:"backoff_cap"`
}

// Config is the top-level configuration file layout.
type Config struct {
	Relay  Relay  `yaml:"relay"`
	Client Client `yaml:"client"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Relay: Relay{
			Listen:        ":8080",
			DBPath:        "data/history.db",
			RecentPerRoom: 256,
			LogLevel:      "info",
		},
		Client: Client{
			URL:         "ws://localhost:8080/api/attach",
			BackoffBase: Duration(time.Second),
			BackoffCap:  Duration(30 * time.Second),
		},
	}
}

// Load reads the config file at path, if it exists, and applies environment
// overrides. A missing file is not an error; defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.Relay.RecentPerRoom <= 0 {
		cfg.Relay.RecentPerRoom = 256
	}
	if cfg.Client.BackoffBase <= 0 {
		cfg.Client.BackoffBase = Duration(time.Second)
	}
	if cfg.Client.BackoffCap < cfg.Client.BackoffBase {
		cfg.Client.BackoffCap = Duration(30 * time.Second)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Relay.Listen = getEnv("PULSEFEED_LISTEN", cfg.Relay.Listen)
	cfg.Relay.Token = getEnv("PULSEFEED_TOKEN", cfg.Relay.Token)
	cfg.Relay.DBPath = getEnv("PULSEFEED_DB_PATH", cfg.Relay.DBPath)
	cfg.Relay.LogLevel = getEnv("PULSEFEED_LOG_LEVEL", cfg.Relay.LogLevel)
	cfg.Client.URL = getEnv("PULSEFEED_URL", cfg.Client.URL)
	cfg.Client.Token = getEnv("PULSEFEED_TOKEN", cfg.Client.Token)
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
