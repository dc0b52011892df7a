package config

import "fmt"

// LLMConfig configures model routing and the tier clients.
type LLMConfig struct {
	// PrivacyMode is the session default: "local_only" or "cloud_allowed".
	// An explicit per-run mode always wins over the advisory classifier.
	PrivacyMode string `yaml:"privacy_mode"`

	Ollama OllamaConfig `yaml:"ollama"`
	Gemini GeminiConfig `yaml:"gemini"`

	// CompletionTimeout bounds one completion call, e.g. "120s".
	CompletionTimeout string `yaml:"completion_timeout"`
}

// OllamaConfig configures the local model tier.
type OllamaConfig struct {
	BaseURL       string `yaml:"base_url"`
	FastModel     string `yaml:"fast_model"`
	PowerfulModel string `yaml:"powerful_model"`
}

// GeminiConfig configures the cloud model tier.
type GeminiConfig struct {
	APIKey    string `yaml:"api_key"`
	BestModel string `yaml:"best_model"`
	FastModel string `yaml:"fast_model"`
}

// DefaultLLMConfig returns sensible defaults for a single-machine install.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		PrivacyMode: "local_only",
		Ollama: OllamaConfig{
			BaseURL:       "http://localhost:11434",
			FastModel:     "llama3.2:3b",
			PowerfulModel: "qwen2.5:14b",
		},
		Gemini: GeminiConfig{
			BestModel: "gemini-2.5-pro",
			FastModel: "gemini-2.5-flash",
		},
		CompletionTimeout: "120s",
	}
}

// Validate checks the LLM configuration.
func (c LLMConfig) Validate() error {
	switch c.PrivacyMode {
	case "local_only", "cloud_allowed":
	default:
		return fmt.Errorf("privacy_mode must be local_only or cloud_allowed, got %q", c.PrivacyMode)
	}
	if c.Ollama.BaseURL == "" {
		return fmt.Errorf("ollama.base_url is required")
	}
	return nil
}
