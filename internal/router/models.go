// Package router selects and invokes language models under a hard privacy
// constraint. The (privacyMode, complexity) preference table is the single
// place model-tier policy lives; the boundary check in Select is the only
// place the LOCAL_ONLY invariant is enforced.
package router

import (
	"context"
	"errors"
	"strings"

	"deepscout/internal/types"
)

// Tier names a class of model. The local/cloud split is structural: cloud
// tiers simply never appear in local-only preference rows.
type Tier string

const (
	TierLocalFast     Tier = "local-fast"
	TierLocalPowerful Tier = "local-powerful"
	TierCloudFast     Tier = "cloud-fast"
	TierCloudBest     Tier = "cloud-best"
)

// Local reports whether the tier runs on-machine.
func (t Tier) Local() bool { return strings.HasPrefix(string(t), "local-") }

// ModelRecommendation is the outcome of one routing decision.
type ModelRecommendation struct {
	Model            string `json:"model"`
	Tier             Tier   `json:"tier"`
	Reasoning        string `json:"reasoning"`
	PrivacyCompliant bool   `json:"privacy_compliant"`
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// TokenEvent is one element of a completion stream. Every stream ends with
// exactly one terminal event: Done set, or Err set. Closing the channel
// follows the terminal event so no consumer blocks indefinitely.
type TokenEvent struct {
	Token string
	Model string
	Done  bool
	Err   error
}

// Client produces completions for one model tier.
type Client interface {
	// Model returns the concrete model identifier this client serves.
	Model() string
	// Available reports whether the model can serve calls right now.
	Available(ctx context.Context) bool
	// Complete returns the full completion text.
	Complete(ctx context.Context, messages []Message) (string, error)
	// Stream emits tokens on the returned channel and always terminates it.
	Stream(ctx context.Context, messages []Message) (<-chan TokenEvent, error)
}

// Error taxonomy.
var (
	// ErrModelUnavailable is fatal for the call; under LOCAL_ONLY with no
	// local model left it is fatal for the whole session.
	ErrModelUnavailable = errors.New("no model available")
	// ErrModelOverloaded is retryable.
	ErrModelOverloaded = errors.New("model overloaded")
)

// complexityLabel renders a complexity for reasoning strings.
func complexityLabel(c types.Complexity) string {
	if c == "" {
		return string(types.ComplexityMedium)
	}
	return string(c)
}
