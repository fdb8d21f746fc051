package config

import (
	"flag"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/grafana/calltree/pkg/profile"
)

// Config controls how profiles are read and how call trees are derived.
type Config struct {
	// SampleType selects the pprof sample type; empty uses the default.
	SampleType string `yaml:"sample_type"`
	// Interval is the sampling interval in milliseconds of inputs that do
	// not carry one.
	Interval        float64            `yaml:"interval_ms"`
	DefaultCategory int32              `yaml:"default_category"`
	Categories      []profile.Category `yaml:"categories"`

	Inverted  bool `yaml:"inverted"`
	Traced    bool `yaml:"traced"`
	MaxDepth  int  `yaml:"max_depth"`
	CacheSize int  `yaml:"cache_size"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&cfg.SampleType, "sample-type", "", "pprof sample type to use. Empty selects the profile's default.")
	f.Float64Var(&cfg.Interval, "interval", 1, "Sampling interval in milliseconds for inputs without one.")
	f.BoolVar(&cfg.Inverted, "inverted", false, "Root the call tree at the leaf functions.")
	f.BoolVar(&cfg.Traced, "traced", false, "Weigh samples by the time until the next sample.")
	f.IntVar(&cfg.MaxDepth, "max-depth", 0, "Maximum depth of printed trees. 0 prints everything.")
	f.IntVar(&cfg.CacheSize, "cache-size", 64, "Number of derived call trees kept in memory.")
	cfg.DefaultCategory = 0
	cfg.Categories = profile.DefaultCategories
}

// Default returns the configuration with every flag at its default.
func Default() *Config {
	cfg := &Config{}
	cfg.RegisterFlags(flag.NewFlagSet("calltree", flag.ContinueOnError))
	return cfg
}

func (cfg *Config) Validate() error {
	if cfg.Interval <= 0 {
		return errors.Errorf("interval_ms must be positive, got %v", cfg.Interval)
	}
	if cfg.CacheSize <= 0 {
		return errors.Errorf("cache_size must be positive, got %d", cfg.CacheSize)
	}
	if cfg.MaxDepth < 0 {
		return errors.Errorf("max_depth must not be negative, got %d", cfg.MaxDepth)
	}
	if len(cfg.Categories) == 0 {
		return errors.New("at least one category is required")
	}
	if cfg.DefaultCategory < 0 || int(cfg.DefaultCategory) >= len(cfg.Categories) {
		return errors.Errorf("default_category %d out of range [0, %d)", cfg.DefaultCategory, len(cfg.Categories))
	}
	for i, c := range cfg.Categories {
		if c.Name == "" {
			return errors.Errorf("category %d: name is required", i)
		}
		if len(c.Subcategories) == 0 {
			return errors.Errorf("category %q: subcategory 0 is required", c.Name)
		}
	}
	return nil
}

// Parse applies YAML data on top of cfg and validates the result.
func (cfg *Config) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrap(err, "failed to parse config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

// Load reads the YAML file at path on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	if err := cfg.Parse(data); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return cfg, nil
}
