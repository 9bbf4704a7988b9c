// Package config loads the gapline configuration file.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"git.unix.lgbt/diamondburned/gapline"
	"git.unix.lgbt/diamondburned/gapline/internal/badgerlog"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultRetention is how long points are kept when no retention is
// configured.
const DefaultRetention = gapline.Month

// Config is the top-level configuration.
type Config struct {
	// Interval is the default measurement interval. Two samples further apart
	// than this are separated by a gap.
	Interval  time.Duration  `yaml:"interval"`
	Retention time.Duration  `yaml:"retention"`
	LogLevel  string         `yaml:"log_level"`
	Series    []SeriesConfig `yaml:"series"`

	series map[string]SeriesConfig
}

// SeriesConfig overrides the settings of a single series.
type SeriesConfig struct {
	Key      string        `yaml:"key"`
	Interval time.Duration `yaml:"interval"`
	FullName string        `yaml:"full_name"`
	Unit     string        `yaml:"unit"`
	Color    string        `yaml:"color"`
	Order    int           `yaml:"order"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.Process()
	return c
}

// Load reads, validates and processes the configuration file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}

	return Parse(b)
}

// LoadOrDefault loads the configuration file at path, or returns the default
// configuration if path is empty.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Parse parses, validates and processes a YAML configuration.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	c.Process()
	return &c, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := checkInterval(c.Interval); err != nil {
		return err
	}

	if c.Retention < 0 {
		return fmt.Errorf("retention (%v) must not be negative", c.Retention)
	}

	if _, err := badgerlog.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Series))

	for i, sc := range c.Series {
		if sc.Key == "" {
			return fmt.Errorf("series[%d]: key is required", i)
		}

		if seen[sc.Key] {
			return fmt.Errorf("series %q: duplicate key", sc.Key)
		}
		seen[sc.Key] = true

		if err := checkInterval(sc.Interval); err != nil {
			return fmt.Errorf("series %q: %w", sc.Key, err)
		}
	}

	return nil
}

// checkInterval allows zero, which means the default.
func checkInterval(d time.Duration) error {
	switch {
	case d < 0:
		return fmt.Errorf("interval (%v) must not be negative", d)
	case d > 0 && d < gapline.GapOffset:
		return fmt.Errorf("interval (%v) must be at least %v", d, gapline.GapOffset)
	}
	return nil
}

// Process fills in the defaults. It is called by Load and Parse.
func (c *Config) Process() {
	if c.Interval == 0 {
		c.Interval = gapline.DefaultInterval
	}
	if c.Retention == 0 {
		c.Retention = DefaultRetention
	}

	c.series = make(map[string]SeriesConfig, len(c.Series))

	for i := range c.Series {
		if c.Series[i].Interval == 0 {
			c.Series[i].Interval = c.Interval
		}
		c.series[c.Series[i].Key] = c.Series[i]
	}
}

// IntervalOf returns the measurement interval of the series with the given
// key.
func (c *Config) IntervalOf(key string) time.Duration {
	if sc, ok := c.series[key]; ok {
		return sc.Interval
	}
	return c.Interval
}

// Apply overrides the metadata of the given info with the configured values.
// Empty values are left alone.
func (c *Config) Apply(info gapline.Info) gapline.Info {
	sc, ok := c.series[info.Key]
	if !ok {
		return info
	}

	if sc.FullName != "" {
		info.FullName = sc.FullName
	}
	if sc.Unit != "" {
		info.Unit = sc.Unit
	}
	if sc.Color != "" {
		info.Color = sc.Color
	}
	if sc.Order != 0 {
		info.Order = sc.Order
	}

	return info
}

// Logger returns the badger logger for the configured level. Process must
// have been called.
func (c *Config) Logger() *badgerlog.Logger {
	level, err := badgerlog.ParseLevel(c.LogLevel)
	if err != nil {
		level = badgerlog.WarningLevel
	}
	return badgerlog.NewLogger(log.Default(), level)
}
