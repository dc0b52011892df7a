// Package adapters implements the raw search calls for each external
// provider. Adapters return provider-ordered results and typed errors; all
// resilience policy lives in the provider package's Gate.
package adapters

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"deepscout/internal/types"
)

const arxivEndpoint = "https://export.arxiv.org/api/query"

// Arxiv queries the arXiv Atom API.
type Arxiv struct {
	client   *http.Client
	endpoint string
	priority int
}

// NewArxiv creates an arXiv adapter.
func NewArxiv(priority int) *Arxiv {
	return &Arxiv{
		client:   &http.Client{Timeout: 30 * time.Second},
		endpoint: arxivEndpoint,
		priority: priority,
	}
}

func (a *Arxiv) Name() string     { return "arxiv" }
func (a *Arxiv) Category() string { return "academic" }
func (a *Arxiv) Priority() int    { return a.priority }

type arxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	Title     string      `xml:"title"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	Links     []arxivLink `xml:"link"`
}

type arxivLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

// Search queries the public arXiv API. Results keep the API's relevance
// ordering.
func (a *Arxiv) Search(ctx context.Context, query string, limit int, filters map[string]string) ([]types.SourceResult, error) {
	if limit <= 0 {
		limit = 5
	}

	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(limit))

	body, err := fetch(ctx, a.client, "arxiv", a.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("arxiv: failed to parse feed: %w", err)
	}

	results := make([]types.SourceResult, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		link := ""
		for _, l := range e.Links {
			if l.Rel == "alternate" || link == "" {
				link = l.Href
			}
		}
		if link == "" {
			continue
		}
		results = append(results, types.SourceResult{
			URL:          link,
			Title:        squish(e.Title),
			Snippet:      squish(e.Summary),
			QualityScore: scoreSnippet(e.Summary, 0.8),
		})
	}
	return results, nil
}

// squish collapses the whitespace arXiv embeds in Atom fields.
func squish(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
