package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Server.URL == "" || cfg.Viewer.Orientation != "yx" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.URL != Default().Server.URL {
		t.Errorf("URL = %q", cfg.Server.URL)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mrui.yaml")
	data := `
server:
  url: http://example.org:9000
  timeoutSeconds: 5
viewer:
  orientation: zx
  colormap: viridis
  cacheCapacity: 11
  gestureIntervalMs: 32
gpu:
  backend: software
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.URL != "http://example.org:9000" || cfg.Timeout() != 5*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Viewer.Orientation != "zx" || cfg.Viewer.Colormap != "viridis" || cfg.Viewer.CacheCapacity != 11 {
		t.Errorf("viewer = %+v", cfg.Viewer)
	}
	if cfg.GestureInterval() != 32*time.Millisecond {
		t.Errorf("GestureInterval = %v", cfg.GestureInterval())
	}
	if cfg.GPU.Backend != "software" {
		t.Errorf("backend = %q", cfg.GPU.Backend)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mrui.yaml")
	if err := os.WriteFile(path, []byte("viewer:\n  orientation: diagonal\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("invalid orientation must be rejected")
	}
}
