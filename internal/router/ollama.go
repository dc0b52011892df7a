package router

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"deepscout/internal/logging"
)

// OllamaClient serves a local model through the Ollama HTTP API.
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaClient creates a client for one local model.
func NewOllamaClient(baseURL, model string) *OllamaClient {
	return &OllamaClient{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: CompletionTimeout},
	}
}

func (c *OllamaClient) Model() string { return c.model }

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Available checks the local daemon for the model.
func (c *OllamaClient) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false
	}
	for _, m := range tags.Models {
		if m.Name == c.model {
			return true
		}
	}
	return false
}

func toOllamaMessages(messages []Message) []ollamaMessage {
	out := make([]ollamaMessage, len(messages))
	for i, m := range messages {
		out[i] = ollamaMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// Complete runs one non-streaming chat call.
func (c *OllamaClient) Complete(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    c.model,
		Messages: toOllamaMessages(messages),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("ollama %s: %w", c.model, ErrModelOverloaded)
	}
	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("ollama %s: %w", c.model, ErrModelUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama %s: http %d", c.model, resp.StatusCode)
	}

	var chat ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return "", fmt.Errorf("ollama %s: bad response: %w", c.model, err)
	}
	if chat.Error != "" {
		return "", fmt.Errorf("ollama %s: %s", c.model, chat.Error)
	}
	return chat.Message.Content, nil
}

// Stream runs one streaming chat call. The returned channel always ends
// with a terminal Done or Err event and is then closed.
func (c *OllamaClient) Stream(ctx context.Context, messages []Message) (<-chan TokenEvent, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    c.model,
		Messages: toOllamaMessages(messages),
		Stream:   true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama stream request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("ollama %s: http %d", c.model, resp.StatusCode)
	}

	out := make(chan TokenEvent, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			var chunk ollamaChatResponse
			if err := json.Unmarshal(scanner.Bytes(), &chunk); err != nil {
				out <- TokenEvent{Err: fmt.Errorf("ollama stream parse: %w", err)}
				return
			}
			if chunk.Error != "" {
				out <- TokenEvent{Err: fmt.Errorf("ollama: %s", chunk.Error)}
				return
			}
			if chunk.Message.Content != "" {
				select {
				case out <- TokenEvent{Token: chunk.Message.Content}:
				case <-ctx.Done():
					out <- TokenEvent{Err: ctx.Err()}
					return
				}
			}
			if chunk.Done {
				out <- TokenEvent{Done: true}
				return
			}
		}
		if err := scanner.Err(); err != nil {
			out <- TokenEvent{Err: err}
			return
		}
		// Connection ended without a done marker.
		out <- TokenEvent{Done: true}
	}()

	logging.Router("streaming from ollama model %s", c.model)
	return out, nil
}
