package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"deepscout/internal/types"
)

const scholarEndpoint = "https://api.semanticscholar.org/graph/v1/paper/search"

// SemanticScholar queries the Semantic Scholar Graph API. The free tier is
// aggressively throttled; the gate runs it at 1 RPS.
type SemanticScholar struct {
	client   *http.Client
	apiKey   string
	priority int
}

// NewSemanticScholar creates a Semantic Scholar adapter. apiKey may be empty.
func NewSemanticScholar(apiKey string, priority int) *SemanticScholar {
	return &SemanticScholar{
		client:   &http.Client{Timeout: 30 * time.Second},
		apiKey:   apiKey,
		priority: priority,
	}
}

func (s *SemanticScholar) Name() string     { return "semantic_scholar" }
func (s *SemanticScholar) Category() string { return "academic" }
func (s *SemanticScholar) Priority() int    { return s.priority }

type scholarResponse struct {
	Data []struct {
		Title         string `json:"title"`
		Abstract      string `json:"abstract"`
		URL           string `json:"url"`
		Year          int    `json:"year"`
		CitationCount int    `json:"citationCount"`
	} `json:"data"`
}

// Search queries the Graph API, keeping its relevance ordering.
func (s *SemanticScholar) Search(ctx context.Context, query string, limit int, filters map[string]string) ([]types.SourceResult, error) {
	if limit <= 0 {
		limit = 5
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("fields", "title,abstract,url,year,citationCount")
	if year, ok := filters["year"]; ok {
		params.Set("year", year)
	}

	headers := map[string]string{}
	if s.apiKey != "" {
		headers["x-api-key"] = s.apiKey
	}

	body, err := fetch(ctx, s.client, "semantic_scholar", scholarEndpoint+"?"+params.Encode(), headers)
	if err != nil {
		return nil, err
	}

	var resp scholarResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("semantic_scholar: failed to parse response: %w", err)
	}

	results := make([]types.SourceResult, 0, len(resp.Data))
	for _, paper := range resp.Data {
		if paper.URL == "" {
			continue
		}
		snippet := paper.Abstract
		if snippet == "" && paper.Year > 0 {
			snippet = fmt.Sprintf("(%d, %d citations)", paper.Year, paper.CitationCount)
		}
		results = append(results, types.SourceResult{
			URL:          paper.URL,
			Title:        paper.Title,
			Snippet:      snippet,
			QualityScore: scoreSnippet(paper.Abstract, 0.8),
		})
	}
	return results, nil
}
