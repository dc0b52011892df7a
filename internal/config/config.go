// Package config holds all deepscout configuration, loaded from YAML with
// environment overrides. Each concern keeps its config in its own file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all deepscout configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	LLM       LLMConfig       `yaml:"llm"`
	Providers ProvidersConfig `yaml:"providers"`
	Research  ResearchConfig  `yaml:"research"`
	Memory    MemoryConfig    `yaml:"memory"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// MemoryConfig configures the session/memory store.
type MemoryConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures category file logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// Default returns a fully-populated default configuration rooted at workdir.
func Default(workdir string) *Config {
	return &Config{
		Name:    "deepscout",
		Version: "0.3.0",
		LLM:     DefaultLLMConfig(),
		Providers: ProvidersConfig{
			MaxConcurrentSearches: 5,
			CallTimeout:           "30s",
			Sources:               DefaultProviderSources(),
		},
		Research: DefaultResearchConfig(),
		Memory: MemoryConfig{
			DatabasePath: filepath.Join(workdir, ".deepscout", "deepscout.db"),
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load reads config from path, merging the file over defaults and applying
// environment overrides last. A missing file yields pure defaults.
func Load(workdir, path string) (*Config, error) {
	cfg := Default(workdir)

	if path == "" {
		path = filepath.Join(workdir, ".deepscout", "config.yaml")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnvOverrides lets deployment environments override secrets and the
// most operationally relevant knobs without touching the config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DEEPSCOUT_GEMINI_API_KEY"); v != "" {
		c.LLM.Gemini.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.LLM.Gemini.APIKey == "" {
		c.LLM.Gemini.APIKey = v
	}
	if v := os.Getenv("DEEPSCOUT_OLLAMA_URL"); v != "" {
		c.LLM.Ollama.BaseURL = v
	}
	if v := os.Getenv("DEEPSCOUT_PRIVACY_MODE"); v != "" {
		c.LLM.PrivacyMode = v
	}
	if v := os.Getenv("DEEPSCOUT_DB_PATH"); v != "" {
		c.Memory.DatabasePath = v
	}
	if os.Getenv("DEEPSCOUT_DEBUG") == "1" {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
}

// Validate checks cross-concern constraints.
func (c *Config) Validate() error {
	if err := c.Research.Validate(); err != nil {
		return err
	}
	if err := c.Providers.Validate(); err != nil {
		return err
	}
	return c.LLM.Validate()
}
