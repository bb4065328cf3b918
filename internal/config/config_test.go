package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backup.Retention != 25 {
		t.Errorf("retention = %d, want default 25", cfg.Backup.Retention)
	}
	if cfg.Cache.Capacity != 128 {
		t.Errorf("capacity = %d, want default 128", cfg.Cache.Capacity)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
backup:
  retention: 10
  cooldown_seconds: 30
maintenance:
  similarity_threshold: 0.9
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backup.Retention != 10 {
		t.Errorf("retention = %d, want 10", cfg.Backup.Retention)
	}
	if cfg.Maintenance.SimilarityThreshold != 0.9 {
		t.Errorf("threshold = %f, want 0.9", cfg.Maintenance.SimilarityThreshold)
	}
	// Untouched fields keep defaults.
	if cfg.Cache.Capacity != 128 {
		t.Errorf("capacity = %d, want default 128", cfg.Cache.Capacity)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("maintenance:\n  similarity_threshold: 2.0\n"), 0644)

	if _, err := Load(path); err == nil {
		t.Error("expected validation error for threshold > 1")
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte(":\t not yaml {{"), 0644)

	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}
