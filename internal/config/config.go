// Package config loads the inspector's runtime configuration from an optional
// YAML file and INSPECTOR_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"intensity-inspector/internal/inspector"
)

// Environment variables read by ApplyEnv.
const (
	EnvConfigPath = "INSPECTOR_CONFIG"
	EnvLogLevel   = "INSPECTOR_LOG_LEVEL"
	EnvJSONLogs   = "INSPECTOR_JSON_LOGS"
	EnvChannels   = "INSPECTOR_CHANNELS"
	EnvUpdateRate = "INSPECTOR_UPDATE_RATE"
)

type Config struct {
	LogLevel          string        `yaml:"log_level"`
	JSONLogs          bool          `yaml:"json_logs"`
	Channels          int           `yaml:"channels"`
	FrameInterval     time.Duration `yaml:"frame_interval"`
	DefaultUpdateRate string        `yaml:"default_update_rate"`
	MaxCASRetries     int           `yaml:"max_cas_retries"`
	EventBufferSize   int           `yaml:"event_buffer_size"`
	ImageWidth        int           `yaml:"image_width"`
	ImageHeight       int           `yaml:"image_height"`
	HistogramBins     int           `yaml:"histogram_bins"`
}

func Default() Config {
	return Config{
		LogLevel:          "info",
		Channels:          3,
		FrameInterval:     100 * time.Millisecond,
		DefaultUpdateRate: inspector.DefaultUpdateRate,
		MaxCASRetries:     inspector.DefaultMaxRetries,
		EventBufferSize:   256,
		ImageWidth:        320,
		ImageHeight:       240,
		HistogramBins:     256,
	}
}

// Load reads path over the defaults. Fields the file omits keep their
// default values. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv loads the file named by INSPECTOR_CONFIG, applies the remaining
// environment overrides and validates the result.
func FromEnv() (Config, error) {
	cfg, err := Load(os.Getenv(EnvConfigPath))
	if err != nil {
		return Config{}, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment looked up through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := getenv(EnvJSONLogs); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvJSONLogs, err)
		}
		c.JSONLogs = b
	}
	if v := getenv(EnvChannels); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvChannels, err)
		}
		c.Channels = n
	}
	if v := getenv(EnvUpdateRate); v != "" {
		c.DefaultUpdateRate = v
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Channels < 1 {
		errs = append(errs, fmt.Errorf("channels must be positive, got %d", c.Channels))
	}
	if c.FrameInterval <= 0 {
		errs = append(errs, fmt.Errorf("frame_interval must be positive, got %s", c.FrameInterval))
	}
	if _, ok := inspector.LookupUpdateRate(c.DefaultUpdateRate); !ok {
		errs = append(errs, fmt.Errorf("%w: default_update_rate %q", inspector.ErrUnknownRate, c.DefaultUpdateRate))
	}
	if c.MaxCASRetries < 1 {
		errs = append(errs, fmt.Errorf("max_cas_retries must be at least 1, got %d", c.MaxCASRetries))
	}
	if c.EventBufferSize < 1 {
		errs = append(errs, fmt.Errorf("event_buffer_size must be positive, got %d", c.EventBufferSize))
	}
	if c.ImageWidth < 1 || c.ImageHeight < 1 {
		errs = append(errs, fmt.Errorf("image size must be positive, got %dx%d", c.ImageWidth, c.ImageHeight))
	}
	if c.HistogramBins < 1 {
		errs = append(errs, fmt.Errorf("histogram_bins must be positive, got %d", c.HistogramBins))
	}
	return errors.Join(errs...)
}
