package adapters

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"deepscout/internal/provider"
	"deepscout/internal/types"
)

const ddgEndpoint = "https://html.duckduckgo.com/html/"

// DuckDuckGo scrapes the HTML results page. No API key, but the endpoint
// throttles hard, so the gate runs it at 1 RPS.
type DuckDuckGo struct {
	client   *http.Client
	priority int
}

// NewDuckDuckGo creates a DuckDuckGo adapter.
func NewDuckDuckGo(priority int) *DuckDuckGo {
	return &DuckDuckGo{
		client:   &http.Client{Timeout: 20 * time.Second},
		priority: priority,
	}
}

func (d *DuckDuckGo) Name() string     { return "duckduckgo" }
func (d *DuckDuckGo) Category() string { return "web" }
func (d *DuckDuckGo) Priority() int    { return d.priority }

// Search posts the query to the HTML endpoint and parses result blocks.
func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int, filters map[string]string) ([]types.SourceResult, error) {
	if limit <= 0 {
		limit = 5
	}

	form := url.Values{}
	form.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ddgEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &provider.TimeoutError{Provider: "duckduckgo", Op: "search"}
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &provider.RateLimitError{Provider: "duckduckgo"}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &provider.TimeoutError{Provider: "duckduckgo", Op: "search"}
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(&buf)
	if err != nil {
		return nil, err
	}

	var results []types.SourceResult
	doc.Find("div.result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find("a.result__a")
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		title := strings.TrimSpace(link.Text())
		snippet := strings.TrimSpace(sel.Find(".result__snippet").Text())
		resolved := resolveDDGRedirect(href)
		if resolved == "" || title == "" {
			return true
		}
		results = append(results, types.SourceResult{
			URL:          resolved,
			Title:        title,
			Snippet:      snippet,
			QualityScore: scoreSnippet(snippet, 0.6),
		})
		return len(results) < limit
	})

	return results, nil
}

// resolveDDGRedirect unwraps the uddg redirect parameter DuckDuckGo puts on
// result links.
func resolveDDGRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		if decoded, err := url.QueryUnescape(target); err == nil {
			return decoded
		}
	}
	if u.IsAbs() {
		return href
	}
	return ""
}
