package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/skalb/diskomat/internal/layout"
	"github.com/skalb/diskomat/internal/teardown"
)

// Config controls one provisioning run. Everything has a working
// default so an empty file (or no file) provisions sensibly.
type Config struct {
	// Mode is "fast" (capacity) or "careful" (redundancy).
	Mode string `yaml:"mode"`
	// PreferRaid6OnFour picks raid6 over raid5 for four-HDD buckets.
	PreferRaid6OnFour bool `yaml:"prefer_raid6_on_four"`
	// SizeTolerance is the relative size spread allowed within a bucket.
	SizeTolerance float64 `yaml:"size_tolerance,omitempty"`
	// RootSize is the requested root volume size, e.g. "50G".
	RootSize string `yaml:"root_size"`
	// Policy is the teardown destructiveness: skip, wipe, discard, random.
	Policy string `yaml:"policy"`
	// DBPath is the audit database location.
	DBPath string `yaml:"db_path,omitempty"`
	// PlanPath is where the rendered device tree is written.
	PlanPath string `yaml:"plan_path,omitempty"`
	// Poll tunes the fixed-interval wait loops.
	Poll Poll `yaml:"poll,omitempty"`
}

// Poll is a fixed-interval, bounded-attempt wait. No backoff growth.
type Poll struct {
	IntervalSec int `yaml:"interval_sec"`
	Attempts    int `yaml:"attempts"`
}

var defaultConfig = Config{
	Mode:     string(layout.ModeFast),
	RootSize: "50G",
	Policy:   string(teardown.PolicyWipe),
	PlanPath: "/var/lib/diskomat/plan.json",
	Poll:     Poll{IntervalSec: 2, Attempts: 60},
}

// Load reads the config from path, or from the default locations when
// path is empty. Missing files fall back to defaults; a malformed file
// or an unknown token is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		candidates := []string{
			"/etc/diskomat/config.yaml",
			filepath.Join(os.Getenv("HOME"), ".config/diskomat/config.yaml"),
			"config.yaml",
		}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	cfg := defaultConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Mode == "" {
		cfg.Mode = defaultConfig.Mode
	}
	if cfg.RootSize == "" {
		cfg.RootSize = defaultConfig.RootSize
	}
	if cfg.Policy == "" {
		cfg.Policy = defaultConfig.Policy
	}
	if cfg.PlanPath == "" {
		cfg.PlanPath = defaultConfig.PlanPath
	}
	if cfg.Poll.IntervalSec <= 0 {
		cfg.Poll.IntervalSec = defaultConfig.Poll.IntervalSec
	}
	if cfg.Poll.Attempts <= 0 {
		cfg.Poll.Attempts = defaultConfig.Poll.Attempts
	}
}

// Validate checks every token the planner and sequencer will consume.
func (c *Config) Validate() error {
	switch layout.Mode(c.Mode) {
	case layout.ModeFast, layout.ModeCareful:
	default:
		return fmt.Errorf("unknown mode %q (want fast or careful)", c.Mode)
	}
	if _, err := teardown.ParsePolicy(c.Policy); err != nil {
		return err
	}
	if _, err := layout.ParseSize(c.RootSize); err != nil {
		return fmt.Errorf("root_size: %w", err)
	}
	return nil
}

// LayoutOptions converts the config into planner options.
func (c *Config) LayoutOptions() (layout.Options, error) {
	rootSize, err := layout.ParseSize(c.RootSize)
	if err != nil {
		return layout.Options{}, err
	}
	return layout.Options{
		Mode:              layout.Mode(c.Mode),
		PreferRaid6OnFour: c.PreferRaid6OnFour,
		SizeTolerance:     c.SizeTolerance,
		RootSize:          rootSize,
	}, nil
}
