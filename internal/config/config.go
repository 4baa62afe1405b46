package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Timings are the coefficients of the leg timing model, all in seconds unless noted.
type Timings struct {
	PerTrade    float64 `yaml:"per_trade"`    // one buy or sell transaction per commodity
	Leave       float64 `yaml:"leave"`        // undock and reach jump range
	Hyperspace  float64 `yaml:"hyperspace"`   // per jump
	Cooldown    float64 `yaml:"cooldown"`     // per jump, FSD cooldown and target selection
	LandStation float64 `yaml:"land_station"` // docking at an orbital station
	LandPlanet  float64 `yaml:"land_planet"`  // descent and landing at a planetary port
	InStation   float64 `yaml:"in_station"`   // menus and animations while docked

	// Supercruise approach: base + ((ln(ls) - 1) / 5) * log_scale + per_ls * ls.
	ApproachBase     float64 `yaml:"approach_base"`
	ApproachLogScale float64 `yaml:"approach_log_scale"`
	ApproachPerLs    float64 `yaml:"approach_per_ls"`
}

// Database selects the store backend.
type Database struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	DSN    string `yaml:"dsn"`
}

// Config holds search settings. It is read once at startup and not mutated afterwards.
type Config struct {
	Cap      int      `yaml:"cap"`       // cargo capacity in units
	LyPer    float64  `yaml:"ly_per"`    // max distance of a single jump
	Hops     int      `yaml:"hops"`      // route legs
	MaxHops  int      `yaml:"max_hops"`  // 0 = fixed Hops; >0 = random 1..MaxHops per refinement
	JumpsPer int      `yaml:"jumps_per"` // max jumps within one leg
	PadSize  string   `yaml:"pad_size"`  // "" (any), "M" or "L"
	Planets  bool     `yaml:"planets"`   // allow planetary ports
	Exclude  []string `yaml:"exclude"`   // commodity names never traded
	MinTime  float64  `yaml:"min_time"`  // 0 = off; routes must take longer than this (seconds)
	RunFor   int      `yaml:"run_for"`   // seconds; 0 = until interrupted

	CacheSize int `yaml:"cache_size"`

	From string `yaml:"from"`
	To   string `yaml:"to"`
	Loop bool   `yaml:"loop"`

	Database Database `yaml:"database"`
	Timings  Timings  `yaml:"timings"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Cap:       100,
		LyPer:     15,
		Hops:      1,
		JumpsPer:  1,
		Planets:   true,
		CacheSize: 10000,
		Database: Database{
			Driver: "sqlite",
			DSN:    "trade.db",
		},
		Timings: Timings{
			PerTrade:         10,
			Leave:            60,
			Hyperspace:       20,
			Cooldown:         35,
			LandStation:      60,
			LandPlanet:       150,
			InStation:        30,
			ApproachBase:     30,
			ApproachLogScale: 100,
			ApproachPerLs:    0.002,
		},
	}
}

// Load reads a YAML config file on top of Default(), applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	overrideWithEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("ELITE_TRADER_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("ELITE_TRADER_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
}

// Validate checks the settings the search depends on.
func (c *Config) Validate() error {
	if c.Cap <= 0 {
		return fmt.Errorf("cap must be positive, got %d", c.Cap)
	}
	if c.LyPer <= 0 {
		return fmt.Errorf("ly_per must be positive, got %v", c.LyPer)
	}
	if c.Hops < 0 || c.MaxHops < 0 {
		return errors.New("hops and max_hops must not be negative")
	}
	if c.Hops > 1 && c.MaxHops > 0 {
		return errors.New("conflicting settings: max_hops overrides the effect of hops")
	}
	if c.JumpsPer < 0 {
		return fmt.Errorf("jumps_per must not be negative, got %d", c.JumpsPer)
	}
	// A one-leg loop would have to trade with its own station.
	if c.Loop && max(c.EffectiveHops(), c.MaxHops) < 2 {
		return errors.New("loop needs at least 2 hops (set hops or max_hops)")
	}
	switch strings.ToUpper(c.PadSize) {
	case "", "M", "L":
	default:
		return fmt.Errorf("pad_size must be M or L, got %q", c.PadSize)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	return nil
}

// EffectiveHops returns Hops, treating 0 as 1.
func (c *Config) EffectiveHops() int {
	if c.Hops <= 0 {
		return 1
	}
	return c.Hops
}

// EffectiveJumpsPer returns JumpsPer, treating 0 as 1.
func (c *Config) EffectiveJumpsPer() int {
	if c.JumpsPer <= 0 {
		return 1
	}
	return c.JumpsPer
}

// RunDuration is RunFor as a time.Duration.
func (c *Config) RunDuration() time.Duration {
	return time.Duration(c.RunFor) * time.Second
}

// ExcludeSet returns Exclude as a lookup map.
func (c *Config) ExcludeSet() map[string]bool {
	m := make(map[string]bool, len(c.Exclude))
	for _, name := range c.Exclude {
		m[name] = true
	}
	return m
}
