package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// MaxRecordBytes caps the serialized size of a stored proposal.
	MaxRecordBytes int `json:"maxRecordBytes" yaml:"maxRecordBytes"`
	// PrincipalHeader names the HTTP header carrying the authenticated
	// caller identity set by the fronting proxy.
	PrincipalHeader string `json:"principalHeader" yaml:"principalHeader"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		MaxRecordBytes:  5000,
		PrincipalHeader: "X-Ballot-Principal",
	}
}

// Load reads configuration from a YAML or JSON file by extension. An
// empty path returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.MaxRecordBytes <= 0 {
		return fmt.Errorf("config: maxRecordBytes must be positive, got %d", c.MaxRecordBytes)
	}
	if c.PrincipalHeader == "" {
		return fmt.Errorf("config: principalHeader must not be empty")
	}
	return nil
}
