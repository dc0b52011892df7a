package router

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"deepscout/internal/logging"
)

// GenAIClient serves a cloud-tier model through the Gemini API.
type GenAIClient struct {
	client *genai.Client
	model  string
}

// NewGenAIClient creates a cloud model client. The API key is required;
// construction fails rather than producing a client that errors on use.
func NewGenAIClient(ctx context.Context, apiKey, model string) (*GenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GenAIClient{client: client, model: model}, nil
}

func (c *GenAIClient) Model() string { return c.model }

// Available is true once construction succeeded; the API has no cheap
// liveness probe worth an extra round trip per selection.
func (c *GenAIClient) Available(ctx context.Context) bool { return c.client != nil }

// toContents flattens chat messages into genai contents. System turns are
// folded into the first user turn.
func toContents(messages []Message) []*genai.Content {
	var system []string
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			text := m.Content
			if len(system) > 0 {
				text = strings.Join(system, "\n") + "\n\n" + text
				system = nil
			}
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		contents = append(contents, genai.NewContentFromText(strings.Join(system, "\n"), genai.RoleUser))
	}
	return contents
}

// Complete runs one generation call.
func (c *GenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, toContents(messages), nil)
	if err != nil {
		if strings.Contains(err.Error(), "429") || strings.Contains(err.Error(), "RESOURCE_EXHAUSTED") {
			return "", fmt.Errorf("gemini %s: %w", c.model, ErrModelOverloaded)
		}
		return "", fmt.Errorf("gemini %s: %w", c.model, err)
	}
	return resp.Text(), nil
}

// Stream runs one streaming generation call with the standard terminal
// event contract.
func (c *GenAIClient) Stream(ctx context.Context, messages []Message) (<-chan TokenEvent, error) {
	out := make(chan TokenEvent, 16)
	go func() {
		defer close(out)
		for chunk, err := range c.client.Models.GenerateContentStream(ctx, c.model, toContents(messages), nil) {
			if err != nil {
				out <- TokenEvent{Err: fmt.Errorf("gemini %s: %w", c.model, err)}
				return
			}
			if text := chunk.Text(); text != "" {
				select {
				case out <- TokenEvent{Token: text}:
				case <-ctx.Done():
					out <- TokenEvent{Err: ctx.Err()}
					return
				}
			}
		}
		out <- TokenEvent{Done: true}
	}()

	logging.Router("streaming from gemini model %s", c.model)
	return out, nil
}
