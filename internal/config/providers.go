package config

import (
	"fmt"
	"time"
)

// ProvidersConfig configures the search provider fleet.
type ProvidersConfig struct {
	// MaxConcurrentSearches caps simultaneous outbound provider calls
	// across the whole session. It composes with each provider's own rate
	// limit rather than replacing it.
	MaxConcurrentSearches int `yaml:"max_concurrent_searches"`

	// CallTimeout bounds a single provider call, e.g. "30s". It is always
	// shorter than the surrounding phase budget.
	CallTimeout string `yaml:"call_timeout"`

	Sources []ProviderSource `yaml:"sources"`
}

// ProviderSource configures one external search provider.
type ProviderSource struct {
	Name     string `yaml:"name"`
	Enabled  bool   `yaml:"enabled"`
	Category string `yaml:"category"` // academic, web, news, medical
	Priority int    `yaml:"priority"` // static rank tiebreak, higher wins

	// RPS is the token-bucket refill rate. Strict APIs run at 1.
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`

	// Retry policy for transient errors.
	MaxAttempts int    `yaml:"max_attempts"`
	BaseBackoff string `yaml:"base_backoff"`
	MaxBackoff  string `yaml:"max_backoff"`

	// Circuit breaker.
	FailureThreshold int    `yaml:"failure_threshold"`
	BaseCooldown     string `yaml:"base_cooldown"`
	MaxCooldown      string `yaml:"max_cooldown"`

	APIKey   string   `yaml:"api_key,omitempty"`
	FeedURLs []string `yaml:"feed_urls,omitempty"` // rss provider only
}

// DefaultProviderSources returns the stock provider fleet.
func DefaultProviderSources() []ProviderSource {
	base := ProviderSource{
		Enabled:          true,
		RPS:              1,
		Burst:            1,
		MaxAttempts:      4,
		BaseBackoff:      "4s",
		MaxBackoff:       "60s",
		FailureThreshold: 5,
		BaseCooldown:     "30s",
		MaxCooldown:      "8m",
	}

	arxiv := base
	arxiv.Name = "arxiv"
	arxiv.Category = "academic"
	arxiv.Priority = 80

	pubmed := base
	pubmed.Name = "pubmed"
	pubmed.Category = "medical"
	pubmed.Priority = 80

	scholar := base
	scholar.Name = "semantic_scholar"
	scholar.Category = "academic"
	scholar.Priority = 70

	ddg := base
	ddg.Name = "duckduckgo"
	ddg.Category = "web"
	ddg.Priority = 50

	rss := base
	rss.Name = "rss"
	rss.Category = "news"
	rss.Priority = 40
	rss.RPS = 2
	rss.Burst = 2
	rss.FeedURLs = []string{
		"https://feeds.arstechnica.com/arstechnica/index",
		"https://www.sciencedaily.com/rss/all.xml",
	}

	return []ProviderSource{arxiv, pubmed, scholar, ddg, rss}
}

// Validate checks the provider configuration.
func (c ProvidersConfig) Validate() error {
	if c.MaxConcurrentSearches < 1 {
		return fmt.Errorf("max_concurrent_searches must be >= 1")
	}
	if _, err := time.ParseDuration(c.CallTimeout); err != nil {
		return fmt.Errorf("invalid call_timeout: %w", err)
	}
	seen := make(map[string]bool)
	for _, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("provider source without a name")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate provider source %q", s.Name)
		}
		seen[s.Name] = true
		if s.RPS <= 0 {
			return fmt.Errorf("provider %s: rps must be > 0", s.Name)
		}
		if s.MaxAttempts < 1 || s.MaxAttempts > 5 {
			return fmt.Errorf("provider %s: max_attempts must be 1..5", s.Name)
		}
	}
	return nil
}

// ParseDurationOr parses d, falling back when empty or invalid.
func ParseDurationOr(d string, fallback time.Duration) time.Duration {
	if d == "" {
		return fallback
	}
	v, err := time.ParseDuration(d)
	if err != nil {
		return fallback
	}
	return v
}
