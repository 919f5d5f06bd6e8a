package store

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from the usual "5s" notation,
// which yaml.v3 does not handle for the bare type.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("store: config: bad duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the standard-library form.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds the connection bootstrap settings.
type Config struct {
	URI            string   `yaml:"uri"`
	Database       string   `yaml:"database"`
	AppName        string   `yaml:"app_name"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
	MaxPoolSize    uint64   `yaml:"max_pool_size"`
}

func (c Config) validate() error {
	if c.URI == "" {
		return fmt.Errorf("store: config: uri is required")
	}
	if c.Database == "" {
		return fmt.Errorf("store: config: database is required")
	}
	return nil
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("store: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("store: parse config: %w", err)
	}
	return cfg, nil
}
