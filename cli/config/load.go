package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a herald.yaml file from path. The raw bytes go through
// ExpandEnv before YAML decoding, so secrets like client IDs can live in
// the environment rather than the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no config file at %s", path)
		}
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	expanded := ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return &cfg, nil
}
