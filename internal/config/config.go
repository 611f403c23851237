package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Property PropertyConfig `toml:"property"`
	Tasks    TasksConfig    `toml:"tasks"`
	Logging  LoggingConfig  `toml:"logging"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// PropertyConfig identifies the holding the ledger belongs to. PIC is the
// property identification code printed on movement and sale paperwork.
type PropertyConfig struct {
	Name    string `toml:"name"`
	PIC     string `toml:"pic"`
	Owner   string `toml:"owner"`
	Address string `toml:"address"`
}

type TasksConfig struct {
	// ReweighIntervalDays controls the follow-up reminder raised after each
	// weighing. Zero disables reweigh reminders.
	ReweighIntervalDays int `toml:"reweigh_interval_days"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Tasks: TasksConfig{
			ReweighIntervalDays: 60,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	c.Database.Path = strings.TrimSpace(c.Database.Path)
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Tasks.ReweighIntervalDays < 0 {
		return fmt.Errorf("tasks.reweigh_interval_days must be >= 0, got %d", c.Tasks.ReweighIntervalDays)
	}

	level := strings.TrimSpace(strings.ToLower(c.Logging.Level))
	if level != "" && !slices.Contains([]string{"debug", "info", "warn", "error"}, level) {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
