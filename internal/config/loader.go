package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"

	"github.com/dayuer/officebot/internal/utils"
)

// GetConfigPath returns the default config file path (~/.officebot/config.json).
func GetConfigPath() string {
	return filepath.Join(utils.GetDataPath(), "config.json")
}

// Load reads configuration from a JSON file and applies OFFICEBOT_* env
// overrides. If path is empty, uses the default config path.
// If the file doesn't exist, starts from DefaultConfig().
func Load(path string) (Config, error) {
	if path == "" {
		path = GetConfigPath()
	}

	cfg := DefaultConfig() // start with defaults so zero-value fields get filled
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return DefaultConfig(), fmt.Errorf("parse %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return Config{}, err
	}

	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides each group from the environment.
func ApplyEnv(cfg *Config) error {
	groups := []struct {
		prefix string
		spec   any
	}{
		{"OFFICEBOT_AGENT", &cfg.Agent},
		{"OFFICEBOT_PROVIDER", &cfg.Provider},
		{"OFFICEBOT_STORE", &cfg.Store},
		{"OFFICEBOT_REDIS", &cfg.Redis},
		{"OFFICEBOT_SERVER", &cfg.Server},
		{"OFFICEBOT_TIMELINE", &cfg.Timeline},
	}
	for _, g := range groups {
		if err := envconfig.Process(g.prefix, g.spec); err != nil {
			return fmt.Errorf("env %s_*: %w", g.prefix, err)
		}
	}
	return nil
}

// Save writes configuration to a JSON file.
// If path is empty, uses the default config path.
func Save(cfg Config, path string) error {
	if path == "" {
		path = GetConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
