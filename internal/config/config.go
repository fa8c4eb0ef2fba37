package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models peloton.yml.
type Config struct {
	Rules Rules `yaml:"rules"`
	Log   struct {
		Debug bool `yaml:"debug"`
	} `yaml:"log"`
}

// Rules are the entity validation limits.
type Rules struct {
	MaxNameLength    int     `yaml:"max_name_length"`
	MinStageLengthKm float64 `yaml:"min_stage_length_km"`
	MinYearOfBirth   int     `yaml:"min_year_of_birth"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with peloton config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Rules.MaxNameLength <= 0 {
		return fmt.Errorf("config.rules.max_name_length must be positive")
	}
	if c.Rules.MinStageLengthKm < 0 {
		return fmt.Errorf("config.rules.min_stage_length_km must not be negative")
	}
	if c.Rules.MinYearOfBirth <= 0 {
		return fmt.Errorf("config.rules.min_year_of_birth must be positive")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "peloton.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing
// from data keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `rules:
  max_name_length: 30
  min_stage_length_km: 5
  min_year_of_birth: 1900

log:
  debug: false
`
