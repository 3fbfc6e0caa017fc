// Package config loads tempo's settings from a TOML file with TEMPO_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	BackendSQLite = "sqlite"
	BackendFolder = "folder"
)

type Config struct {
	// Backend selects the primary store: "sqlite" or "folder".
	Backend          string `toml:"backend" mapstructure:"backend"`
	DBPath           string `toml:"db_path" mapstructure:"db_path"`
	DataFolder       string `toml:"data_folder" mapstructure:"data_folder"`
	LogFile          string `toml:"log_file" mapstructure:"log_file"`
	LogLevel         string `toml:"log_level" mapstructure:"log_level"`
	ResumeGapSeconds int    `toml:"resume_gap_seconds" mapstructure:"resume_gap_seconds"`
}

// Default returns the configuration used when no file exists, rooted at dir.
func Default(dir string) *Config {
	return &Config{
		Backend:          BackendSQLite,
		DBPath:           filepath.Join(dir, "tempo.db"),
		DataFolder:       filepath.Join(dir, "data"),
		LogFile:          filepath.Join(dir, "tempo.log"),
		LogLevel:         "info",
		ResumeGapSeconds: 5,
	}
}

// ResumeGap is the pause between UI ticks treated as a suspend.
func (c *Config) ResumeGap() time.Duration {
	return time.Duration(c.ResumeGapSeconds) * time.Second
}

// Dir returns ~/.config/tempo
func Dir() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(cfg, "tempo"), nil
}

// DefaultPath returns ~/.config/tempo/tempo.toml
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tempo.toml"), nil
}

// Load reads the config file at path, creating it with defaults when it
// does not exist. An empty path means DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	def := Default(filepath.Dir(path))
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := Save(def, path); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix("TEMPO")
	v.AutomaticEnv()

	v.SetDefault("backend", def.Backend)
	v.SetDefault("db_path", def.DBPath)
	v.SetDefault("data_folder", def.DataFolder)
	v.SetDefault("log_file", def.LogFile)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("resume_gap_seconds", def.ResumeGapSeconds)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	for _, p := range []*string{&cfg.DBPath, &cfg.DataFolder, &cfg.LogFile} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as TOML to path.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Backend != BackendSQLite && c.Backend != BackendFolder {
		problems = append(problems, fmt.Sprintf("backend must be %q or %q, got %q", BackendSQLite, BackendFolder, c.Backend))
	}
	if c.DBPath == "" {
		problems = append(problems, "db_path cannot be empty")
	}
	if c.Backend == BackendFolder && c.DataFolder == "" {
		problems = append(problems, "data_folder cannot be empty with the folder backend")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log_level must be debug, info, warn or error, got %q", c.LogLevel))
	}
	if c.ResumeGapSeconds < 2 {
		problems = append(problems, "resume_gap_seconds must be at least 2")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// ExpandPath expands a leading ~/ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get user home dir: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}
