package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Viewer.FPS != 30 {
		t.Errorf("expected fps 30, got %d", cfg.Viewer.FPS)
	}
	if cfg.Viewer.Padding != 1.2 {
		t.Errorf("expected padding 1.2, got %v", cfg.Viewer.Padding)
	}
	if cfg.Viewer.TweenDuration != 600*time.Millisecond {
		t.Errorf("expected tween 600ms, got %v", cfg.Viewer.TweenDuration)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.LogFile != "" {
		t.Errorf("unexpected logging defaults %+v", cfg.Logging)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urdfview.yaml")
	content := `
viewer:
  fps: 60
  tween_duration: 250ms
  orthographic: true
assets:
  manifest: assets.yaml
logging:
  level: debug
  log_file: /tmp/urdfview.log
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Viewer.FPS != 60 || !cfg.Viewer.Orthographic {
		t.Errorf("viewer not loaded: %+v", cfg.Viewer)
	}
	if cfg.Viewer.TweenDuration != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", cfg.Viewer.TweenDuration)
	}
	// Unset keys keep their defaults
	if cfg.Viewer.FOV != 45 || cfg.Viewer.Background != "#181a20" {
		t.Errorf("defaults lost: %+v", cfg.Viewer)
	}
	if cfg.Assets.Manifest != "assets.yaml" {
		t.Errorf("expected manifest, got %q", cfg.Assets.Manifest)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.LogFile != "/tmp/urdfview.log" {
		t.Errorf("logging not loaded: %+v", cfg.Logging)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "nope.yaml")},
		{"bad yaml", write("bad.yaml", "viewer: [")},
		{"zero fps", write("fps.yaml", "viewer:\n  fps: 0\n")},
		{"tiny padding", write("pad.yaml", "viewer:\n  padding: 0.5\n")},
		{"wide fov", write("fov.yaml", "viewer:\n  fov: 200\n")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(tc.path); err == nil {
				t.Error("expected error")
			}
		})
	}
}
