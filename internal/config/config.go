// Package config handles TOML-based configuration loading and
// validation. Endpoint URLs, size caps and timeouts all live here so the
// resolution logic itself carries no hardcoded upstream knowledge.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that unmarshals from TOML strings like
// "30s" or "1h".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Endpoints holds the upstream URL for every resolution strategy.
// Order of attempts is fixed in the resolver; which host serves each
// attempt is configuration.
type Endpoints struct {
	Tikwm         string `toml:"tikwm"`
	MusicallyDown string `toml:"musicallydown"`
	SnapTik       string `toml:"snaptik"`
	IGDownloader  string `toml:"igdownloader"`
	Vidloder      string `toml:"vidloder"`
	PinResource   string `toml:"pin_resource"`
}

// Fetch bounds the media download step.
type Fetch struct {
	MaxBytes    int64    `toml:"max_bytes"`
	MinBytes    int64    `toml:"min_bytes"`
	MaxDuration Duration `toml:"max_duration"`
}

// Retention controls the background cleanup of stored files.
type Retention struct {
	Interval Duration `toml:"interval"`
	MaxAge   Duration `toml:"max_age"`
}

// Config holds all application configuration.
type Config struct {
	StorageDir      string    `toml:"storage_dir"`
	UsersDB         string    `toml:"users_db"`
	HistoryDB       string    `toml:"history_db"`
	APIAddr         string    `toml:"api_addr"`
	FreeTimeGrant   Duration  `toml:"free_time_grant"`
	StrategyTimeout Duration  `toml:"strategy_timeout"`
	Endpoints       Endpoints `toml:"endpoints"`
	Fetch           Fetch     `toml:"fetch"`
	Retention       Retention `toml:"retention"`
	Debug           bool      `toml:"debug"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		StorageDir:      "downloads",
		UsersDB:         "users.json",
		HistoryDB:       "history.db",
		APIAddr:         ":3000",
		FreeTimeGrant:   Duration{2 * time.Hour},
		StrategyTimeout: Duration{30 * time.Second},
		Endpoints: Endpoints{
			Tikwm:         "https://www.tikwm.com/api/",
			MusicallyDown: "https://musicallydown.com/download",
			SnapTik:       "https://snaptik.app/api",
			IGDownloader:  "https://v3.igdownloader.app/api/ajaxSearch",
			Vidloder:      "https://vidloder.com/api",
			PinResource:   "https://www.pinterest.com/resource/PinResource/get/",
		},
		Fetch: Fetch{
			MaxBytes:    200 * 1024 * 1024,
			MinBytes:    50 * 1024,
			MaxDuration: Duration{3 * time.Minute},
		},
		Retention: Retention{
			Interval: Duration{30 * time.Minute},
			MaxAge:   Duration{1 * time.Hour},
		},
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "vidgrab"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "vidgrab"), nil
}

// Path returns the default path to the config file.
func Path() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file at path and merges it over defaults. An
// empty path falls back to the XDG location; a missing file yields
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	if c.StorageDir == "" {
		return fmt.Errorf("storage_dir cannot be empty")
	}
	if c.Fetch.MaxBytes <= 0 {
		return fmt.Errorf("fetch.max_bytes must be positive")
	}
	if c.Fetch.MinBytes < 0 || c.Fetch.MinBytes >= c.Fetch.MaxBytes {
		return fmt.Errorf("fetch.min_bytes must be non-negative and below max_bytes")
	}
	if c.Fetch.MaxDuration.Duration <= 0 {
		return fmt.Errorf("fetch.max_duration must be positive")
	}
	if c.Retention.Interval.Duration <= 0 || c.Retention.MaxAge.Duration <= 0 {
		return fmt.Errorf("retention interval and max_age must be positive")
	}
	// A sweep threshold shorter than the longest possible download would
	// let the sweeper race an active writer.
	if c.Retention.MaxAge.Duration <= c.Fetch.MaxDuration.Duration {
		return fmt.Errorf("retention.max_age must exceed fetch.max_duration")
	}
	if c.StrategyTimeout.Duration <= 0 {
		return fmt.Errorf("strategy_timeout must be positive")
	}
	if c.FreeTimeGrant.Duration <= 0 {
		return fmt.Errorf("free_time_grant must be positive")
	}
	return nil
}

// ExpandStorageDir resolves ~ in the storage directory and returns an
// absolute path.
func (c *Config) ExpandStorageDir() (string, error) {
	dir := c.StorageDir
	if len(dir) >= 2 && dir[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding home dir: %w", err)
		}
		dir = filepath.Join(home, dir[2:])
	}
	return filepath.Abs(dir)
}
