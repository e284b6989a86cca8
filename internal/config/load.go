package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load returns the defaults overlaid with the YAML file at path. An empty
// path searches the standard locations and falls back to the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return cfg, nil
		}
	}
	if err := loadFromFile(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the viewer cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Viewer.FPS <= 0:
		return errors.New("viewer.fps must be positive")
	case c.Viewer.FOV <= 0 || c.Viewer.FOV >= 180:
		return errors.New("viewer.fov must be between 0 and 180 degrees")
	case c.Viewer.Padding < 1:
		return errors.New("viewer.padding must be at least 1")
	case c.Viewer.TweenDuration < 0:
		return errors.New("viewer.tween_duration must not be negative")
	case c.Assets.Workers < 0:
		return errors.New("assets.workers must not be negative")
	}
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{"./urdfview.yaml"}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "urdfview", "config.yaml"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadFromFile merges a YAML file into cfg.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
