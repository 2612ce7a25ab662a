package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ModelSetting enables one model at a provider.
type ModelSetting struct {
	ID       string `json:"id" yaml:"id" toml:"id"`
	Priority string `json:"priority" yaml:"priority" toml:"priority"`
}

// ProviderSetting enables a provider and its models.
type ProviderSetting struct {
	Name   string         `json:"name" yaml:"name" toml:"name"`
	Models []ModelSetting `json:"models" yaml:"models" toml:"models"`
}

// Settings holds the per-user configuration a generation round is built
// from. Zero values mean "unspecified" and are replaced by defaults in
// ApplyDefaults.
type Settings struct {
	Endpoint          string            `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	MaxTokens         int               `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	MaxConcurrent     int               `json:"max_concurrent" yaml:"max_concurrent" toml:"max_concurrent"`
	MaxRetries        int               `json:"max_retries" yaml:"max_retries" toml:"max_retries"`
	SystemInstruction string            `json:"system_instruction" yaml:"system_instruction" toml:"system_instruction"`
	Temperatures      []float64         `json:"temperatures" yaml:"temperatures" toml:"temperatures"`
	Providers         []ProviderSetting `json:"providers" yaml:"providers" toml:"providers"`
}

// ApplyDefaults fills unspecified fields with package defaults.
func (s *Settings) ApplyDefaults() {
	if s.MaxTokens <= 0 {
		s.MaxTokens = 256
	}
	if len(s.Temperatures) == 0 {
		s.Temperatures = []float64{0.7}
	}
}

// Validate checks the settings describe at least one possibility.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.Endpoint) == "" {
		return fmt.Errorf("endpoint is required")
	}
	enabled := 0
	for _, p := range s.Providers {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("provider with empty name")
		}
		for _, m := range p.Models {
			if strings.TrimSpace(m.ID) == "" {
				return fmt.Errorf("provider %s has a model with empty id", p.Name)
			}
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("no models enabled")
	}
	return nil
}

// Load reads a settings file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Settings, error) {
	var s Settings
	if path == "" {
		return s, fmt.Errorf("empty settings path")
	}
	expanded, err := ExpandHome(path)
	if err != nil {
		return s, err
	}
	b, err := os.ReadFile(expanded)
	if err != nil {
		return s, err
	}
	switch ext := strings.ToLower(filepath.Ext(expanded)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &s); err != nil {
			return s, err
		}
	case ".json":
		if err := json.Unmarshal(b, &s); err != nil {
			return s, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &s); err != nil {
			return s, err
		}
	default:
		return s, fmt.Errorf("unsupported settings extension: %s", ext)
	}
	return s, nil
}
