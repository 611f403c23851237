package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/stockyard.db")
	if cfg.Database.Path != "/tmp/stockyard.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Tasks.ReweighIntervalDays != 60 {
		t.Fatalf("unexpected reweigh interval %d", cfg.Tasks.ReweighIntervalDays)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("unexpected log level %q", cfg.Logging.Level)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/stockyard.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != defaults.Database.Path {
		t.Fatalf("expected default db path, got %q", cfg.Database.Path)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
path = "/custom/stockyard.db"

[property]
name = "Saltbush Downs"
pic = "NA123456"
owner = "R. Carmody"

[tasks]
reweigh_interval_days = 30

[logging]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/custom/stockyard.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Property.Name != "Saltbush Downs" || cfg.Property.PIC != "NA123456" {
		t.Fatalf("unexpected property %+v", cfg.Property)
	}
	if cfg.Tasks.ReweighIntervalDays != 30 {
		t.Fatalf("unexpected reweigh interval %d", cfg.Tasks.ReweighIntervalDays)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected log level %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsNegativeReweighInterval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
path = "/custom/stockyard.db"

[tasks]
reweigh_interval_days = -1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(path, Default("/tmp/default.db")); err == nil {
		t.Fatal("expected error for negative reweigh interval")
	}
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
path = "/custom/stockyard.db"

[logging]
level = "chatty"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(path, Default("/tmp/default.db")); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestLoadRejectsEmptyDatabasePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
path = "  "
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(path, Default("/tmp/default.db")); err == nil {
		t.Fatal("expected error for empty database path")
	}
}
