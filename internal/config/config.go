// Package config defines scan configuration as an explicit value passed
// into sessions. Nothing here is a process-wide singleton; the CLI loads
// a Config once and hands it down.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Clamp bounds applied by Normalize.
const (
	MaxConcurrency = 1024
	MinTimeout     = 10 * time.Millisecond
	MaxTimeout     = 60 * time.Second
)

// Profile is a named speed preset for scanning.
type Profile struct {
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description" json:"description"`
	Rate        int           `yaml:"rate" json:"rate"`               // packets per second
	Concurrency int           `yaml:"concurrency" json:"concurrency"` // concurrent workers
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`         // per-operation timeout
	Retries     int           `yaml:"retries" json:"retries"`         // retry attempts
}

// Profiles holds the built-in speed presets.
var Profiles = map[string]Profile{
	"slow": {
		Name:        "slow",
		Description: "Conservative scanning for stealth and stability",
		Rate:        50,
		Concurrency: 50,
		Timeout:     3 * time.Second,
		Retries:     3,
	},
	"medium": {
		Name:        "medium",
		Description: "Balanced scanning for general use",
		Rate:        200,
		Concurrency: 200,
		Timeout:     2 * time.Second,
		Retries:     2,
	},
	"fast": {
		Name:        "fast",
		Description: "Aggressive scanning for speed",
		Rate:        1000,
		Concurrency: 500,
		Timeout:     1 * time.Second,
		Retries:     1,
	},
	"ludicrous": {
		Name:        "ludicrous",
		Description: "Maximum speed scanning (use with caution)",
		Rate:        5000,
		Concurrency: 1000,
		Timeout:     500 * time.Millisecond,
		Retries:     0,
	},
}

// ProfileOrder lists profiles from slowest to fastest for display.
var ProfileOrder = []string{"slow", "medium", "fast", "ludicrous"}

// Config carries every knob a scan session needs.
type Config struct {
	Profile      string        `mapstructure:"profile" yaml:"profile"`
	Ports        string        `mapstructure:"ports" yaml:"ports"`
	Concurrency  int           `mapstructure:"concurrency" yaml:"concurrency"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Rate         int           `mapstructure:"rate" yaml:"rate"`
	Retries      int           `mapstructure:"retries" yaml:"retries"`
	Identify     bool          `mapstructure:"identify" yaml:"identify"`
	WebTech      bool          `mapstructure:"webtech" yaml:"webtech"`
	OutputFormat string        `mapstructure:"output" yaml:"output"`
	OutDir       string        `mapstructure:"out_dir" yaml:"out_dir"`
	Signatures   string        `mapstructure:"signatures" yaml:"signatures"`
	Verbose      bool          `mapstructure:"verbose" yaml:"verbose"`
}

// Default returns the medium-profile configuration.
func Default() Config {
	cfg := Config{
		Ports:        "common",
		Identify:     true,
		OutputFormat: "text",
		OutDir:       DefaultDir(),
	}
	cfg, _ = cfg.ApplyProfile("medium")
	return cfg
}

// DefaultDir returns the per-user data directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".portsage")
}

// ApplyProfile copies a named profile's rate, concurrency, timeout and
// retries into the config.
func (c Config) ApplyProfile(name string) (Config, error) {
	p, ok := Profiles[name]
	if !ok {
		return c, fmt.Errorf("rate profile %q does not exist", name)
	}
	c.Profile = name
	c.Rate = p.Rate
	c.Concurrency = p.Concurrency
	c.Timeout = p.Timeout
	c.Retries = p.Retries
	return c, nil
}

// Normalize clamps out-of-range values instead of rejecting them. Zero
// numeric fields fall back to the medium profile.
func (c Config) Normalize() Config {
	medium := Profiles["medium"]

	if c.Concurrency <= 0 {
		c.Concurrency = medium.Concurrency
	}
	if c.Concurrency > MaxConcurrency {
		c.Concurrency = MaxConcurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = medium.Timeout
	}
	if c.Timeout < MinTimeout {
		c.Timeout = MinTimeout
	}
	if c.Timeout > MaxTimeout {
		c.Timeout = MaxTimeout
	}
	if c.Rate < 0 {
		c.Rate = 0
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.Profile == "" {
		c.Profile = "medium"
	}
	if c.Ports == "" {
		c.Ports = "common"
	}
	if c.OutputFormat == "" {
		c.OutputFormat = "text"
	}
	if c.OutDir == "" {
		c.OutDir = DefaultDir()
	}
	return c
}

// configKeys enumerates everything Load recognizes from files and the
// PORTSAGE_* environment.
var configKeys = []string{
	"profile", "ports", "concurrency", "timeout", "rate", "retries",
	"identify", "webtech", "output", "out_dir", "signatures", "verbose",
}

// Load builds a Config from an optional file plus environment
// overrides. With an empty path it searches ~/.portsage and the working
// directory for config.yaml; a missing file there is not an error. The
// selected profile is applied first, then any explicitly set keys
// override it.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PORTSAGE")
	for _, key := range configKeys {
		v.BindEnv(key)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".portsage"))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var raw Config
	if err := v.Unmarshal(&raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg := Default()
	if raw.Profile != "" {
		applied, err := cfg.ApplyProfile(raw.Profile)
		if err != nil {
			return Config{}, err
		}
		cfg = applied
	}

	if raw.Ports != "" {
		cfg.Ports = raw.Ports
	}
	if raw.Concurrency != 0 {
		cfg.Concurrency = raw.Concurrency
	}
	if raw.Timeout != 0 {
		cfg.Timeout = raw.Timeout
	}
	if raw.Rate != 0 {
		cfg.Rate = raw.Rate
	}
	if raw.Retries != 0 {
		cfg.Retries = raw.Retries
	}
	if v.IsSet("identify") {
		cfg.Identify = v.GetBool("identify")
	}
	if v.IsSet("webtech") {
		cfg.WebTech = v.GetBool("webtech")
	}
	if v.IsSet("verbose") {
		cfg.Verbose = v.GetBool("verbose")
	}
	if raw.OutputFormat != "" {
		cfg.OutputFormat = raw.OutputFormat
	}
	if raw.OutDir != "" {
		cfg.OutDir = raw.OutDir
	}
	if raw.Signatures != "" {
		cfg.Signatures = raw.Signatures
	}

	return cfg.Normalize(), nil
}

const defaultConfigYAML = `# portsage configuration
# Values here are defaults; command-line flags always win.

# Speed preset: slow, medium, fast, ludicrous
profile: medium

# Default port spec: a named set (common, web, database, top100,
# top1000) or explicit ports like "22,80,8000-8100"
ports: common

# Fingerprint services on open ports
identify: true

# Run web technology detection against open HTTP(S) ports
webtech: false

# Output format: text, json, csv, html
output: text

# Uncomment to override the active profile:
# concurrency: 200
# timeout: 2s
# rate: 200
# retries: 2

# Custom signature overlay:
# signatures: /path/to/signatures.yaml
`

// WriteDefault creates a commented starter config at path, refusing to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
