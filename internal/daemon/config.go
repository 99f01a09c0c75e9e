// Package daemon holds the wallet daemon's configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the full daemon configuration, loaded from TOML.
type Config struct {
	API     APIConfig     `toml:"api"`
	Store   StoreConfig   `toml:"store"`
	Cloud   CloudConfig   `toml:"cloud"`
	AI      AIConfig      `toml:"ai"`
	Relay   RelayConfig   `toml:"relay"`
	Metrics MetricsConfig `toml:"metrics"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StoreConfig configures the local replica.
type StoreConfig struct {
	// Dir holds the sqlite database. Created on first run.
	Dir string `toml:"dir"`
}

// CloudConfig configures the cloud replica. Disabled means the wallet runs
// on the local replica alone.
type CloudConfig struct {
	Enabled   bool   `toml:"enabled"`
	Addr      string `toml:"addr"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	Namespace string `toml:"namespace"`
}

// AIConfig configures the outbound relay client.
type AIConfig struct {
	RelayURL       string `toml:"relay_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// RelayConfig configures the hosted vendor relay. The credential can also
// come from BLOSSOM_VENDOR_KEY, which wins over the file.
type RelayConfig struct {
	Enabled   bool   `toml:"enabled"`
	VendorURL string `toml:"vendor_url"`
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 7327,
		},
		Store: StoreConfig{
			Dir: filepath.Join(home, ".blossom"),
		},
		Cloud: CloudConfig{
			Enabled:   false,
			Addr:      "127.0.0.1:6379",
			Namespace: "blossom",
		},
		AI: AIConfig{
			RelayURL:       "http://127.0.0.1:7327/v1/relay",
			TimeoutSeconds: 60,
		},
		Relay: RelayConfig{
			Enabled:   false,
			VendorURL: "https://ark.cn-beijing.volces.com/api/v3/chat/completions",
			Model:     "doubao-seed-1-6-flash-250828",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads the config file at path, falling back to defaults for every
// field the file omits. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	if key := os.Getenv("BLOSSOM_VENDOR_KEY"); key != "" {
		cfg.Relay.APIKey = key
	}
	return cfg, nil
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".blossom", "config.toml")
}
