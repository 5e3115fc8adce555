// Package config loads the service configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Gemini    GeminiConfig    `koanf:"gemini"`
	Storage   StorageConfig   `koanf:"storage"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Delivery  DeliveryConfig  `koanf:"delivery"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type GeminiConfig struct {
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"` // Optional: custom API endpoint
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type PipelineConfig struct {
	MaxPromptTokens int `koanf:"max_prompt_tokens"`
}

type DeliveryConfig struct {
	Timeout    string `koanf:"timeout"` // Duration string like "15s"
	HistoryCap int    `koanf:"history_cap"`
}

type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try to load from config.yaml file first
	if err := k.Load(file.Provider("config.yaml"), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider("NEXUS_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "NEXUS_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("gemini.model") {
		k.Set("gemini.model", "gemini-2.0-flash")
	}
	if !k.Exists("storage.type") {
		k.Set("storage.type", "memory")
	}
	if !k.Exists("delivery.timeout") {
		k.Set("delivery.timeout", "15s")
	}
	if !k.Exists("delivery.history_cap") {
		k.Set("delivery.history_cap", 10)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute environment variables in the API key
	cfg.Gemini.APIKey = substituteEnvVars(cfg.Gemini.APIKey)

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
