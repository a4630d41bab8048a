// Package config loads recordctl/pagestat configuration from a YAML
// file via Viper, grounded on the teacher's internal/config.go pattern
// (a Viper instance scoped to one config file, unmarshaled into a
// mapstructure-tagged struct).
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the tunables cmd/recordctl and cmd/pagestat apply at open
// time. PageSize is deliberately absent: pagefile.PageSize is a compile-time
// package constant (spec.md's PAGE_SIZE), not a per-table parameter, so
// there is nothing for a page_size config key to override.
type Config struct {
	DataDir      string `mapstructure:"data_dir"`
	BufferFrames int    `mapstructure:"buffer_frames"`
	Strategy     string `mapstructure:"strategy"` // fifo|lru|clock|lruk
	LogLevel     string `mapstructure:"log_level"`
}

// Default returns the built-in configuration used when no config file is
// given.
func Default() *Config {
	return &Config{
		DataDir:      ".",
		BufferFrames: 3,
		Strategy:     "lru",
		LogLevel:     "info",
	}
}

// Load reads path as YAML and unmarshals it into a Config, starting from
// Default() so a partial file only overrides the fields it sets.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %q: %w", path, err)
	}
	return cfg, nil
}
