package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Config models taskgen.yml.
type Config struct {
	Generator GeneratorConfig `yaml:"generator"`
	Paths     struct {
		ReferenceDir string `yaml:"reference_dir"`
		OutputDir    string `yaml:"output_dir"`
	} `yaml:"paths"`
	Archive struct {
		Include []string `yaml:"include"`
	} `yaml:"archive"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`
}

// WebhookConfig posts run events to URL. Empty Events selects every event type.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events,omitempty"`
	Secret         string   `yaml:"secret,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
}

// GeneratorConfig holds the defaults applied to runs that do not override them.
type GeneratorConfig struct {
	Seed                int64   `yaml:"seed"`
	NumSamples          int     `yaml:"num_samples"`
	DistanceConstraint  float64 `yaml:"distance_constraint"`
	PlacementMaxRetries int     `yaml:"placement_max_retries"`
	ClusterMaxAttempts  int     `yaml:"cluster_max_attempts"`
	QuotaAttempts       int     `yaml:"quota_attempts"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with taskgen config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
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
	g := c.Generator
	if g.NumSamples < 1 {
		return fmt.Errorf("config.generator.num_samples must be positive")
	}
	if g.DistanceConstraint <= 0 {
		return fmt.Errorf("config.generator.distance_constraint must be positive")
	}
	if g.PlacementMaxRetries < 1 {
		return fmt.Errorf("config.generator.placement_max_retries must be positive")
	}
	if g.ClusterMaxAttempts < 1 {
		return fmt.Errorf("config.generator.cluster_max_attempts must be positive")
	}
	if g.QuotaAttempts < 1 {
		return fmt.Errorf("config.generator.quota_attempts must be positive")
	}
	if c.Paths.ReferenceDir == "" {
		return fmt.Errorf("config.paths.reference_dir is required")
	}
	if c.Paths.OutputDir == "" {
		return fmt.Errorf("config.paths.output_dir is required")
	}
	if len(c.Archive.Include) == 0 {
		return fmt.Errorf("config.archive.include needs at least one pattern")
	}
	for _, p := range c.Archive.Include {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("config.archive.include has invalid pattern %q", p)
		}
	}
	for i, h := range c.Webhooks {
		if !strings.HasPrefix(h.URL, "http://") && !strings.HasPrefix(h.URL, "https://") {
			return fmt.Errorf("config.webhooks[%d].url must be an http(s) url", i)
		}
		if h.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}

// Resolve makes relative paths absolute against workspace.
func (c *Config) Resolve(workspace string) {
	if workspace == "" {
		workspace = "."
	}
	if !filepath.IsAbs(c.Paths.ReferenceDir) {
		c.Paths.ReferenceDir = filepath.Join(workspace, c.Paths.ReferenceDir)
	}
	if !filepath.IsAbs(c.Paths.OutputDir) {
		c.Paths.OutputDir = filepath.Join(workspace, c.Paths.OutputDir)
	}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "taskgen.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing from data keep
// their default values.
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

// Marshal renders cfg as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

const defaultTemplate = `generator:
  seed: 1729
  num_samples: 10000
  distance_constraint: 10.0
  placement_max_retries: 10000
  cluster_max_attempts: 100000
  quota_attempts: 3000

paths:
  reference_dir: reference
  output_dir: output

archive:
  include: ["**/*.csv", "**/*.ipynb"]

server:
  addr: 127.0.0.1:8080
  base_path: /v0
`
