// Package config loads the sampler configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/gaerbox/influx"
	"github.com/mklimuk/gaerbox/mcp9808"
	"github.com/mklimuk/gaerbox/sampler"
)

// Adapters lists the supported bus transports.
var Adapters = []string{"periph", "nanopi", "mcp2221", "sim"}

var ErrInvalid = errors.New("config: invalid configuration")

type Influx struct {
	URL         string `yaml:"url"`
	Database    string `yaml:"database"`
	Measurement string `yaml:"measurement"`
}

type Config struct {
	Bus        string        `yaml:"bus"`
	Address    uint16        `yaml:"address"`
	Adapter    string        `yaml:"adapter"`
	Interval   time.Duration `yaml:"interval"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	Influx     Influx        `yaml:"influx"`
}

func Default() Config {
	return Config{
		Bus:        mcp9808.DefaultBus,
		Address:    mcp9808.DefaultAddress,
		Adapter:    "periph",
		Interval:   sampler.DefaultInterval,
		RetryDelay: sampler.DefaultRetryDelay,
		Influx: Influx{
			URL:         influx.DefaultURL,
			Database:    influx.DefaultDatabase,
			Measurement: influx.DefaultMeasurement,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: could not read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes data over the defaults and validates the result. Unknown keys
// are rejected.
func Parse(data []byte) (Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	err := dec.Decode(&c)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: could not decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	switch {
	case c.Bus == "":
		return fmt.Errorf("%w: bus is empty", ErrInvalid)
	case c.Address > 0x7F:
		return fmt.Errorf("%w: address %#x is not a 7-bit address", ErrInvalid, c.Address)
	case !slices.Contains(Adapters, c.Adapter):
		return fmt.Errorf("%w: unknown adapter %q", ErrInvalid, c.Adapter)
	case c.Interval <= 0:
		return fmt.Errorf("%w: interval must be positive", ErrInvalid)
	case c.RetryDelay < 0:
		return fmt.Errorf("%w: retry delay must not be negative", ErrInvalid)
	case c.Influx.URL == "":
		return fmt.Errorf("%w: influx url is empty", ErrInvalid)
	case c.Influx.Database == "":
		return fmt.Errorf("%w: influx database is empty", ErrInvalid)
	case c.Influx.Measurement == "":
		return fmt.Errorf("%w: influx measurement is empty", ErrInvalid)
	}
	return nil
}
