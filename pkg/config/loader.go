package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML config file, expands environment variables, applies
// defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes with env expansion, defaults and
// validation.
func Parse(data []byte) (*Config, error) {
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	expanded := ExpandEnvVarsInData(rawMap)

	// Round-trip through YAML to decode the expanded map into the typed
	// config. Keeps expansion independent of struct decoding.
	normalized, err := yaml.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(normalized, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// ZeroConfig builds a single-assistant configuration entirely from
// environment variables, for running without a config file.
func ZeroConfig() (*Config, error) {
	cfg := &Config{
		Agents: map[string]*AgentConfig{
			"assistant": {
				Name:        "assistant",
				Description: "General-purpose assistant",
				Instructions: "You are a helpful assistant. If you call a tool, use the provided " +
					"functions, do not make up responses, just use the responses from the tools as is.",
			},
		},
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
