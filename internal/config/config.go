package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries every tunable of the highlighter and its surfaces.
// Values load from the environment, optionally layered over a YAML
// file naming the tag classification and hue palette.
type Config struct {
	// Server
	Port   string
	APIKey string

	// Tag classification consumed by the flow segmenter.
	RejectTags          []string
	FlowTags            []string
	UnhighlightableTags []string

	// Color hues assigned to terms, cycled when terms outnumber them.
	Hues []int

	// Backend preference: auto, paint, element or url.
	Backend string

	// Engine tuning.
	DebounceInterval time.Duration
	CoalesceWindow   time.Duration
	CoalesceMaxDelay time.Duration
	CoalesceLimit    int

	// Layout
	LayoutWidth    int
	ViewportMargin int

	// Server housekeeping
	SessionTTL     time.Duration
	MaxUploadBytes int64
}

// fileConfig is the YAML schema of the optional config file.
type fileConfig struct {
	Tags struct {
		Reject          []string `yaml:"reject"`
		Flow            []string `yaml:"flow"`
		Unhighlightable []string `yaml:"unhighlightable"`
	} `yaml:"tags"`
	Hues    []int  `yaml:"hues"`
	Backend string `yaml:"backend"`
}

// Load reads configuration from the environment, applying the YAML
// file named by MMS_CONFIG_FILE when set.
func Load() Config {
	cfg := Config{
		Port:   envOr("PORT", "8091"),
		APIKey: os.Getenv("MMS_API_KEY"),

		Hues:    []int{300, 60, 110, 220, 30, 190},
		Backend: envOr("MMS_BACKEND", "auto"),

		DebounceInterval: envDuration("MMS_DEBOUNCE", 40*time.Millisecond),
		CoalesceWindow:   envDuration("MMS_COALESCE_WINDOW", 250*time.Millisecond),
		CoalesceMaxDelay: envDuration("MMS_COALESCE_MAX_DELAY", 2*time.Second),
		CoalesceLimit:    envInt("MMS_COALESCE_LIMIT", 3),

		LayoutWidth:    envInt("MMS_LAYOUT_WIDTH", 80),
		ViewportMargin: envInt("MMS_VIEWPORT_MARGIN", 40),

		SessionTTL:     envDuration("MMS_SESSION_TTL", 1*time.Hour),
		MaxUploadBytes: envInt64("MMS_MAX_UPLOAD_BYTES", 20971520), // 20MB
	}

	if path := os.Getenv("MMS_CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			// A broken config file falls back to defaults; Validate
			// still runs on the result.
			fmt.Fprintf(os.Stderr, "config file %s: %v\n", path, err)
		}
	}

	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = 40 * time.Millisecond
	}
	if cfg.LayoutWidth <= 0 {
		cfg.LayoutWidth = 80
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 1 * time.Hour
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20971520
	}

	return cfg
}

// LoadFile layers a YAML config file over the current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if len(fc.Tags.Reject) > 0 {
		c.RejectTags = fc.Tags.Reject
	}
	if len(fc.Tags.Flow) > 0 {
		c.FlowTags = fc.Tags.Flow
	}
	if len(fc.Tags.Unhighlightable) > 0 {
		c.UnhighlightableTags = fc.Tags.Unhighlightable
	}
	if len(fc.Hues) > 0 {
		c.Hues = fc.Hues
	}
	if fc.Backend != "" {
		c.Backend = fc.Backend
	}
	return nil
}

// Validate checks values a server cannot run without.
func (c Config) Validate() error {
	switch c.Backend {
	case "auto", "paint", "element", "url":
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	for _, hue := range c.Hues {
		if hue < 0 || hue >= 360 {
			return fmt.Errorf("hue %d out of range [0, 360)", hue)
		}
	}
	return nil
}

// ValidateServer additionally requires the API key.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("MMS_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
