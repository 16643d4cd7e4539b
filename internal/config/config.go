package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Root      string `toml:"root"`
	DBPath    string `toml:"db_path"`
	Agent     string `toml:"agent"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// Load builds the configuration from defaults, ~/.config/mmem/config.toml
// and MMEM_* environment variables, in that order of precedence (lowest first).
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(filepath.Join(home, ".config", "mmem", "config.toml"), home, os.Getenv)
}

// LoadFrom is Load with the config file, home directory and environment
// lookup supplied by the caller.
func LoadFrom(cfgPath, home string, getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Root:     filepath.Join(home, ".config", "marvin", "sessions"),
		DBPath:   filepath.Join(home, ".config", "marvin", "mmem.sqlite"),
		LogLevel: "warn",
	}

	if _, err := os.Stat(cfgPath); err == nil {
		if _, err := toml.DecodeFile(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	if v := getenv("MMEM_ROOT"); v != "" {
		cfg.Root = v
	}
	if v := getenv("MMEM_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("MMEM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	cfg.Root = expandHome(cfg.Root, home)
	cfg.DBPath = expandHome(cfg.DBPath, home)

	return cfg, nil
}

// ExpandHome expands a leading "~" or "~/" using the current user's home.
func ExpandHome(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return expandHome(path, home)
}

func expandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
