// Package config holds urdfview settings loaded from YAML.
package config

import "time"

// Config holds all viewer settings.
type Config struct {
	Viewer  ViewerConfig  `yaml:"viewer"`
	Assets  AssetsConfig  `yaml:"assets"`
	Logging LoggingConfig `yaml:"logging"`
}

// ViewerConfig holds camera and rendering settings.
type ViewerConfig struct {
	FPS           int           `yaml:"fps"`
	FOV           float64       `yaml:"fov"` // Vertical field of view in degrees
	Padding       float64       `yaml:"padding"`
	TweenDuration time.Duration `yaml:"tween_duration"`
	Background    string        `yaml:"background"` // #rrggbb
	Orthographic  bool          `yaml:"orthographic"`
	Wireframe     bool          `yaml:"wireframe"`
	Bell          bool          `yaml:"bell"` // Ring the terminal bell on clicks
}

// AssetsConfig says where mesh payloads come from. Dir wins over Manifest.
type AssetsConfig struct {
	Dir      string `yaml:"dir"`
	Manifest string `yaml:"manifest"`
	Workers  int    `yaml:"workers"` // Scene decode workers, 0 = GOMAXPROCS
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Viewer: ViewerConfig{
			FPS:           30,
			FOV:           45,
			Padding:       1.2,
			TweenDuration: 600 * time.Millisecond,
			Background:    "#181a20",
			Bell:          true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
