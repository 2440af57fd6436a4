package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SourceConfig describes a single listing source.
type SourceConfig struct {
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label used in output.
	Name string `yaml:"name" json:"name"`
	// Kind selects the adapter: "ics" or "web".
	Kind string `yaml:"kind" json:"kind"`
	// URL is the feed or listing-page endpoint.
	URL string `yaml:"url" json:"url"`
	// Rank is the merge priority; lower wins, unique across sources.
	Rank int `yaml:"rank" json:"rank"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the daemon API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the daemon status API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used for "now" and date math.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "0 6 * * *")
	// driving periodic pipeline runs in daemon mode.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// OutputDir is where rendered markdown is written.
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// DataDir holds the persisted event store and adapter caches.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// HorizonDays bounds recurrence expansion and synthesized end dates
	// for indefinite listings.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// OngoingThresholdDays is the span in whole days above which an event
	// is categorized as ongoing.
	OngoingThresholdDays int `yaml:"ongoing_threshold_days" json:"ongoing_threshold_days"`

	// TheaterMarker is the event type that forces the theater category,
	// matched case-insensitively.
	TheaterMarker string `yaml:"theater_marker" json:"theater_marker"`

	// DiffBuckets names the persisted buckets that get new-item reporting.
	DiffBuckets []string `yaml:"diff_buckets" json:"diff_buckets"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Sources is the list of configured listing sources.
	Sources []SourceConfig `yaml:"sources" json:"sources"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// daemon endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:               "127.0.0.1:8080",
		Timezone:             "Europe/Warsaw",
		RefreshCron:          "0 6 * * *",
		OutputDir:            "./out",
		DataDir:              "./var",
		HorizonDays:          400,
		OngoingThresholdDays: 30,
		TheaterMarker:        "Spektakle teatralne",
		DiffBuckets:          []string{"ongoing"},
		LogLevel:             "info",
		Sources:              []SourceConfig{},
		BasicAuth:            nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Warsaw"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "0 6 * * *"
	}
	if c.OutputDir == "" {
		c.OutputDir = "./out"
	}
	if c.DataDir == "" {
		c.DataDir = "./var"
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 400
	}
	if c.OngoingThresholdDays == 0 {
		c.OngoingThresholdDays = 30
	}
	if c.TheaterMarker == "" {
		c.TheaterMarker = "Spektakle teatralne"
	}
	if c.DiffBuckets == nil {
		c.DiffBuckets = []string{"ongoing"}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".afisz-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Set permissions to 0600 on temp file before rename.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	// Rename over the target path.
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}
