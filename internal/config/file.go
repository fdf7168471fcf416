package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ApplyFile overlays values from a YAML file onto cfg. Fields absent from
// the file keep their current values, so defaults survive a partial file
// and flags parsed afterwards still win.
func ApplyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	return nil
}
