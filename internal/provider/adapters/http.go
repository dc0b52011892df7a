package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"deepscout/internal/provider"
)

const userAgent = "deepscout/0.3 (research agent)"

// fetch issues one GET and maps HTTP status codes onto the provider error
// taxonomy so the gate can tell retryable from terminal.
func fetch(ctx context.Context, client *http.Client, providerName, rawURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &provider.TimeoutError{Provider: providerName, Op: "fetch"}
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &provider.RateLimitError{
			Provider:   providerName,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return nil, &provider.AccessDeniedError{
			Provider: providerName,
			URL:      rawURL,
			Status:   resp.StatusCode,
		}
	case resp.StatusCode >= 500:
		return nil, &provider.TimeoutError{Provider: providerName, Op: fmt.Sprintf("http %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s: http %d", providerName, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// scoreSnippet gives a crude quality score: sources with substantial
// abstracts score near base, bare links score lower.
func scoreSnippet(snippet string, base float64) float64 {
	switch {
	case len(snippet) >= 200:
		return base
	case len(snippet) >= 50:
		return base * 0.8
	default:
		return base * 0.5
	}
}
