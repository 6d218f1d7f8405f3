package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.Port != 11100 {
		t.Errorf("default port = %d, want 11100", cfg.Session.Port)
	}
	if cfg.Snapshots.Backend != "disk" {
		t.Errorf("default snapshot backend = %q, want disk", cfg.Snapshots.Backend)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
session:
  port: 12000
  watchdogTimeout: 30s
features:
  disabled:
    - f27a9cd8-07f6-4b1f-b5f8-3d55c7c76e2a
snapshots:
  backend: s3
  bucket: warden-snapshots
  prefix: lab/
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	engine := cfg.SessionEngineConfig()
	if engine.Port != 12000 {
		t.Errorf("engine port = %d, want 12000", engine.Port)
	}
	if engine.WatchdogTimeout != 30*time.Second {
		t.Errorf("watchdog = %v, want 30s", engine.WatchdogTimeout)
	}
	// Fields absent from the file keep their defaults.
	if engine.ConnectTimeout != 10*time.Second {
		t.Errorf("connect timeout = %v, want default 10s", engine.ConnectTimeout)
	}

	ids, err := cfg.DisabledFeatures()
	if err != nil {
		t.Fatalf("DisabledFeatures: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("disabled features = %v, want one id", ids)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad feature id", "features:\n  disabled: [not-a-uuid]\n"},
		{"bad backend", "snapshots:\n  backend: ftp\n"},
		{"s3 without bucket", "snapshots:\n  backend: s3\n  bucket: \"\"\n"},
		{"bad port", "session:\n  port: 700000\n"},
		{"bad yaml", "session: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("Load accepted a bad config")
			}
		})
	}
}
