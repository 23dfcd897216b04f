// Package config loads viewer configuration from YAML files and provides
// default values.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fzimmermann89/mrui/render"
	"github.com/fzimmermann89/mrui/volume"
)

// Config is the application configuration loaded from YAML.
type Config struct {
	// Server describes the reconstruction API endpoint.
	Server struct {
		// URL is the base URL of the server.
		URL string `yaml:"url"`

		// TimeoutSeconds bounds a single HTTP request. 0 disables the
		// timeout.
		TimeoutSeconds int `yaml:"timeoutSeconds"`
	} `yaml:"server"`

	// Viewer holds display defaults.
	Viewer struct {
		// Orientation is the initial slicing orientation (yx, zx or zy).
		Orientation string `yaml:"orientation"`

		// Colormap is the initial colormap name.
		Colormap string `yaml:"colormap"`

		// CacheCapacity is the number of slices kept per viewing context.
		CacheCapacity int `yaml:"cacheCapacity"`

		// GestureIntervalMS is the gesture coalescing interval in
		// milliseconds. 0 selects the built-in default.
		GestureIntervalMS int `yaml:"gestureIntervalMs"`
	} `yaml:"viewer"`

	// GPU selects the rendering backend.
	GPU struct {
		// Backend forces a specific backend ("software", "wgpu").
		// Empty selects the best available one.
		Backend string `yaml:"backend"`
	} `yaml:"gpu"`
}

// Default returns a configuration with default values.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.URL = "http://localhost:8000"
	cfg.Server.TimeoutSeconds = 30
	cfg.Viewer.Orientation = string(volume.OrientationYX)
	cfg.Viewer.Colormap = render.DefaultColormap
	return cfg
}

// Load loads configuration from a YAML file on top of the defaults.
// A missing file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the viewer would reject.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url must not be empty")
	}
	if _, err := volume.ParseOrientation(c.Viewer.Orientation); err != nil {
		return fmt.Errorf("viewer.orientation: %w", err)
	}
	if _, err := render.BuildLUT(c.Viewer.Colormap); err != nil {
		return fmt.Errorf("viewer.colormap: %w", err)
	}
	if c.Viewer.CacheCapacity < 0 {
		return fmt.Errorf("viewer.cacheCapacity must not be negative")
	}
	return nil
}

// Timeout returns the configured HTTP request timeout, or 0 for none.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

// GestureInterval returns the configured coalescing interval, or 0 for the
// built-in default.
func (c *Config) GestureInterval() time.Duration {
	return time.Duration(c.Viewer.GestureIntervalMS) * time.Millisecond
}
