package adapters

import (
	"context"
	"strings"

	"github.com/mmcdole/gofeed"

	"deepscout/internal/types"
)

// RSS searches a configured set of news feeds by keyword match. Feeds are
// fetched fresh each call; the gate's bucket keeps the fetch rate polite.
type RSS struct {
	parser   *gofeed.Parser
	feedURLs []string
	priority int
}

// NewRSS creates an RSS adapter over the given feed URLs.
func NewRSS(feedURLs []string, priority int) *RSS {
	return &RSS{
		parser:   gofeed.NewParser(),
		feedURLs: feedURLs,
		priority: priority,
	}
}

func (r *RSS) Name() string     { return "rss" }
func (r *RSS) Category() string { return "news" }
func (r *RSS) Priority() int    { return r.priority }

// Search fetches each feed and keeps items whose title or description
// matches any query term. Item order within a feed is preserved.
func (r *RSS) Search(ctx context.Context, query string, limit int, filters map[string]string) ([]types.SourceResult, error) {
	if limit <= 0 {
		limit = 5
	}
	terms := queryTerms(query)

	var results []types.SourceResult
	var lastErr error
	for _, feedURL := range r.feedURLs {
		feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			// One dead feed should not sink the provider.
			lastErr = err
			continue
		}
		for _, item := range feed.Items {
			if item.Link == "" || !matchesTerms(item, terms) {
				continue
			}
			results = append(results, types.SourceResult{
				URL:          item.Link,
				Title:        item.Title,
				Snippet:      strings.TrimSpace(item.Description),
				QualityScore: scoreSnippet(item.Description, 0.5),
			})
			if len(results) >= limit {
				return results, nil
			}
		}
	}

	if len(results) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return results, nil
}

func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := fields[:0]
	for _, f := range fields {
		if len(f) >= 4 { // skip stopword-sized tokens
			terms = append(terms, f)
		}
	}
	return terms
}

func matchesTerms(item *gofeed.Item, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	haystack := strings.ToLower(item.Title + " " + item.Description)
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			return true
		}
	}
	return false
}
