// Package config loads the configurator's YAML settings file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the settings file read when CONFIGURATOR_CONFIG is unset.
const DefaultPath = "configurator.yaml"

// EnvPath names the environment variable that overrides DefaultPath.
const EnvPath = "CONFIGURATOR_CONFIG"

// Version is the only settings file version this build understands.
const Version = 1

type Config struct {
	Version int `yaml:"version"`
	Graph   struct {
		Slug  string `yaml:"slug"`
		Dir   string `yaml:"dir"`
		Watch bool   `yaml:"watch"`
	} `yaml:"graph"`
	Kernel struct {
		Backend   string `yaml:"backend"`
		MeshCells int    `yaml:"mesh_cells"`
	} `yaml:"kernel"`
	Engine struct {
		ExpressionTimeout time.Duration `yaml:"expression_timeout"`
	} `yaml:"engine"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Window struct {
		Title  string `yaml:"title"`
		Width  int    `yaml:"width"`
		Height int    `yaml:"height"`
	} `yaml:"window"`
}

// Default returns the settings used when no file exists.
func Default() *Config {
	cfg := &Config{Version: Version}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Graph.Slug == "" {
		c.Graph.Slug = "nozzle"
	}
	if c.Kernel.Backend == "" {
		c.Kernel.Backend = "sdfx"
	}
	if c.Kernel.MeshCells == 0 {
		c.Kernel.MeshCells = 120
	}
	if c.Engine.ExpressionTimeout == 0 {
		c.Engine.ExpressionTimeout = 2 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Window.Title == "" {
		c.Window.Title = "Configurator"
	}
	if c.Window.Width == 0 {
		c.Window.Width = 1280
	}
	if c.Window.Height == 0 {
		c.Window.Height = 800
	}
}

func (c *Config) validate() error {
	switch c.Kernel.Backend {
	case "sdfx", "manifold":
	default:
		return fmt.Errorf("unknown kernel backend %q", c.Kernel.Backend)
	}
	if c.Kernel.MeshCells < 0 {
		return fmt.Errorf("kernel.mesh_cells must be positive, got %d", c.Kernel.MeshCells)
	}
	if c.Engine.ExpressionTimeout < 0 {
		return fmt.Errorf("engine.expression_timeout must be positive, got %s", c.Engine.ExpressionTimeout)
	}
	return nil
}

// Path returns the settings file location: $CONFIGURATOR_CONFIG if set,
// DefaultPath otherwise.
func Path() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the settings file at path. A missing file yields Default().
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes settings from YAML and fills in defaults.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.Version != Version {
		return nil, fmt.Errorf("unsupported configurator.yaml version: %d", cfg.Version)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
