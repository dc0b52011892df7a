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

const (
	pubmedSearchEndpoint  = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi"
	pubmedSummaryEndpoint = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esummary.fcgi"
)

// PubMed queries the NCBI E-utilities API. NCBI enforces a strict request
// rate for unauthenticated clients, so this provider runs at 1 RPS.
type PubMed struct {
	client   *http.Client
	apiKey   string
	priority int
}

// NewPubMed creates a PubMed adapter. apiKey may be empty.
func NewPubMed(apiKey string, priority int) *PubMed {
	return &PubMed{
		client:   &http.Client{Timeout: 30 * time.Second},
		apiKey:   apiKey,
		priority: priority,
	}
}

func (p *PubMed) Name() string     { return "pubmed" }
func (p *PubMed) Category() string { return "medical" }
func (p *PubMed) Priority() int    { return p.priority }

type pubmedSearchResponse struct {
	ESearchResult struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type pubmedSummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

type pubmedDocSummary struct {
	UID     string `json:"uid"`
	Title   string `json:"title"`
	PubDate string `json:"pubdate"`
	Source  string `json:"source"`
}

// Search runs esearch then esummary, keeping PubMed's relevance order.
func (p *PubMed) Search(ctx context.Context, query string, limit int, filters map[string]string) ([]types.SourceResult, error) {
	if limit <= 0 {
		limit = 5
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", query)
	params.Set("retmax", strconv.Itoa(limit))
	params.Set("retmode", "json")
	params.Set("sort", "relevance")
	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}

	body, err := fetch(ctx, p.client, "pubmed", pubmedSearchEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var search pubmedSearchResponse
	if err := json.Unmarshal(body, &search); err != nil {
		return nil, fmt.Errorf("pubmed: failed to parse esearch response: %w", err)
	}
	ids := search.ESearchResult.IDList
	if len(ids) == 0 {
		return nil, nil
	}

	sumParams := url.Values{}
	sumParams.Set("db", "pubmed")
	sumParams.Set("retmode", "json")
	sumParams.Set("id", joinIDs(ids))
	if p.apiKey != "" {
		sumParams.Set("api_key", p.apiKey)
	}

	body, err = fetch(ctx, p.client, "pubmed", pubmedSummaryEndpoint+"?"+sumParams.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var summary pubmedSummaryResponse
	if err := json.Unmarshal(body, &summary); err != nil {
		return nil, fmt.Errorf("pubmed: failed to parse esummary response: %w", err)
	}

	results := make([]types.SourceResult, 0, len(ids))
	for _, id := range ids {
		raw, ok := summary.Result[id]
		if !ok {
			continue
		}
		var doc pubmedDocSummary
		if err := json.Unmarshal(raw, &doc); err != nil || doc.Title == "" {
			continue
		}
		snippet := doc.Source
		if doc.PubDate != "" {
			snippet = fmt.Sprintf("%s (%s)", doc.Source, doc.PubDate)
		}
		results = append(results, types.SourceResult{
			URL:          "https://pubmed.ncbi.nlm.nih.gov/" + id + "/",
			Title:        doc.Title,
			Snippet:      snippet,
			QualityScore: 0.85,
		})
	}
	return results, nil
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id
	}
	return out
}
