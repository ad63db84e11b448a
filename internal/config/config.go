package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. LAZYTIME_DB_PATH.
const EnvPrefix = "LAZYTIME"

type Config struct {
	DBPath        string `yaml:"db_path" mapstructure:"db_path"`
	HistoryDBPath string `yaml:"history_db_path" mapstructure:"history_db_path"`
	LogLevel      string `yaml:"log_level" mapstructure:"log_level"`
	WebPort       int    `yaml:"web_port" mapstructure:"web_port"`
}

func Default() Config {
	return Config{
		DBPath:        "lazytime.db",
		HistoryDBPath: "lazytime_history.db",
		LogLevel:      "warn",
		WebPort:       8080,
	}
}

func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "lazytime", "config.yaml"), nil
}

func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error. Relative database paths are resolved against
// the directory of path.
func Load(path string) (Config, error) {
	def := Default()
	v := viper.New()
	v.SetDefault("db_path", def.DBPath)
	v.SetDefault("history_db_path", def.HistoryDBPath)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("web_port", def.WebPort)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	dir := filepath.Dir(path)
	cfg.DBPath = resolve(dir, cfg.DBPath)
	cfg.HistoryDBPath = resolve(dir, cfg.HistoryDBPath)
	return cfg, nil
}

func resolve(dir, p string) string {
	if p == "" || p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func Save(path string, cfg Config) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// Level parses LogLevel, falling back to warn.
func (c Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelWarn
	}
	return level
}
