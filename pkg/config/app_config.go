package config

import (
	"fmt"
	"os"

	"collab-tracker-backend/pkg/models"

	"gopkg.in/yaml.v3"
)

// LoadAppConfigFile reads a YAML file overriding the built-in app defaults.
// Keys absent from the file keep their default value. An empty path returns
// the defaults unchanged.
func LoadAppConfigFile(path string) (models.AppConfig, error) {
	cfg := models.DefaultAppConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read app config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return models.DefaultAppConfig(), fmt.Errorf("parse app config file %s: %w", path, err)
	}
	return cfg, nil
}
