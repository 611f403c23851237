package platform

import (
	"path/filepath"
	"testing"
)

func TestPathsFor(t *testing.T) {
	cases := []struct {
		name       string
		goos       string
		env        map[string]string
		configDir  string
		dataDir    string
		wantConfig string
		wantDB     string
	}{
		{
			name: "linux honors XDG dirs",
			goos: "linux",
			env: map[string]string{
				"XDG_CONFIG_HOME": "/xdg/config",
				"XDG_DATA_HOME":   "/xdg/data",
			},
			configDir:  "/fallback/config",
			dataDir:    "/fallback/data",
			wantConfig: filepath.Join("/xdg/config", "stockyard", "config.toml"),
			wantDB:     filepath.Join("/xdg/data", "stockyard", "stockyard.db"),
		},
		{
			name:       "linux without XDG falls back to user dirs",
			goos:       "linux",
			env:        map[string]string{},
			configDir:  "/home/me/.config",
			dataDir:    "/home/me/.local/share",
			wantConfig: filepath.Join("/home/me/.config", "stockyard", "config.toml"),
			wantDB:     filepath.Join("/home/me/.local/share", "stockyard", "stockyard.db"),
		},
		{
			name: "windows uses the AppData pair",
			goos: "windows",
			env: map[string]string{
				"APPDATA":      `C:\Users\me\AppData\Roaming`,
				"LOCALAPPDATA": `C:\Users\me\AppData\Local`,
			},
			configDir:  `C:\fallback\config`,
			dataDir:    `C:\fallback\data`,
			wantConfig: filepath.Join(`C:\Users\me\AppData\Roaming`, "stockyard", "config.toml"),
			wantDB:     filepath.Join(`C:\Users\me\AppData\Local`, "stockyard", "stockyard.db"),
		},
		{
			name: "darwin ignores XDG",
			goos: "darwin",
			env: map[string]string{
				"XDG_CONFIG_HOME": "/ignored",
				"XDG_DATA_HOME":   "/ignored",
			},
			configDir:  "/Users/me/Library/Application Support",
			dataDir:    "/Users/me/Library/Application Support",
			wantConfig: filepath.Join("/Users/me/Library/Application Support", "stockyard", "config.toml"),
			wantDB:     filepath.Join("/Users/me/Library/Application Support", "stockyard", "stockyard.db"),
		},
		{
			name:       "unknown platform uses supplied dirs",
			goos:       "freebsd",
			env:        map[string]string{},
			configDir:  "/cfg",
			dataDir:    "/data",
			wantConfig: filepath.Join("/cfg", "stockyard", "config.toml"),
			wantDB:     filepath.Join("/data", "stockyard", "stockyard.db"),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := PathsFor(tc.goos, tc.env, tc.configDir, tc.dataDir, "stockyard")
			if err != nil {
				t.Fatalf("PathsFor() error = %v", err)
			}
			if p.ConfigPath != tc.wantConfig {
				t.Fatalf("unexpected config path %q", p.ConfigPath)
			}
			if p.DBPath != tc.wantDB {
				t.Fatalf("unexpected db path %q", p.DBPath)
			}
			if want := filepath.Join(p.DataDir, "backups"); p.BackupsDir != want {
				t.Fatalf("backups dir %q, want %q", p.BackupsDir, want)
			}
		})
	}
}

func TestPathsForEmptyDirsFails(t *testing.T) {
	if _, err := PathsFor("darwin", nil, "", "/tmp/data", "stockyard"); err == nil {
		t.Fatal("expected error for empty dirs")
	}
	if _, err := PathsFor("linux", nil, "/cfg", "/data", "  "); err == nil {
		t.Fatal("expected error for blank app name")
	}
}

func TestDefaultPathsSmoke(t *testing.T) {
	p, err := DefaultPaths()
	if err != nil {
		t.Fatalf("DefaultPaths() error = %v", err)
	}
	if p.ConfigPath == "" || p.DBPath == "" || p.DataDir == "" || p.BackupsDir == "" {
		t.Fatalf("expected non-empty paths, got %#v", p)
	}
}

func TestDefaultPathsWithOptionsDevMode(t *testing.T) {
	p, err := DefaultPathsWithOptions(Options{AppName: "stockyard", DevMode: true})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions() error = %v", err)
	}
	if filepath.Base(filepath.Dir(p.ConfigPath)) != "stockyard-dev" {
		t.Fatalf("expected dev config dir suffix, got %q", p.ConfigPath)
	}
	if filepath.Base(p.DBPath) != "stockyard-dev.db" {
		t.Fatalf("expected dev db name, got %q", p.DBPath)
	}
}
