package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a relay client config file. ${VAR} references are expanded
// from the environment, and unknown keys are rejected so a misspelt
// setting does not silently fall back to its default.
func Load(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read relay config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("relay config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML config content after environment expansion. Empty
// content yields an empty config.
func Parse(data []byte) (*ClientConfig, error) {
	expanded := os.ExpandEnv(string(data))

	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)

	var cfg ClientConfig
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &cfg, nil
}

// LoadWithDefaults loads config and fills in unset optional fields.
func LoadWithDefaults(path string) (*ClientConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults and validates. The relay
// and identity must come from the file; callers that override them from
// flags should use LoadWithDefaults and Validate separately.
func LoadAndValidate(path string) (*ClientConfig, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
