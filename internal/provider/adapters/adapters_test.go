package adapters

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepscout/internal/provider"
)

func TestFetchMapsStatusToErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		headers map[string]string
		check   func(t *testing.T, err error)
	}{
		{
			name:    "429 with retry-after",
			status:  http.StatusTooManyRequests,
			headers: map[string]string{"Retry-After": "7"},
			check: func(t *testing.T, err error) {
				var rl *provider.RateLimitError
				require.ErrorAs(t, err, &rl)
				assert.Equal(t, 7*time.Second, rl.RetryAfter)
			},
		},
		{
			name:   "403 access denied",
			status: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				var denied *provider.AccessDeniedError
				require.ErrorAs(t, err, &denied)
				assert.Equal(t, http.StatusForbidden, denied.Status)
				assert.NotEmpty(t, denied.URL)
			},
		},
		{
			name:   "503 transient",
			status: http.StatusServiceUnavailable,
			check: func(t *testing.T, err error) {
				var to *provider.TimeoutError
				require.ErrorAs(t, err, &to)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := fetch(context.Background(), srv.Client(), "test", srv.URL, nil)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestFetchTimeoutMapsToTimeoutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := fetch(ctx, srv.Client(), "test", srv.URL, nil)
	var to *provider.TimeoutError
	if !errors.As(err, &to) {
		t.Fatalf("err = %v, want TimeoutError on deadline", err)
	}
}

func TestArxivParsesAtomFeed(t *testing.T) {
	const atom = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>Quantum Error
      Correction at Scale</title>
    <summary>We demonstrate a surface code implementation with logical error rates
      below threshold across a range of system sizes, establishing practical
      fault tolerance for near-term quantum hardware platforms.</summary>
    <published>2026-01-15T00:00:00Z</published>
    <link href="http://arxiv.org/abs/2601.01234v1" rel="alternate" type="text/html"/>
  </entry>
</feed>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("search_query"), "all:")
		w.Write([]byte(atom))
	}))
	defer srv.Close()

	a := NewArxiv(80)
	a.client = srv.Client()
	a.endpoint = srv.URL

	results, err := a.Search(context.Background(), "quantum error correction", 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	// Atom whitespace is collapsed.
	assert.Equal(t, "Quantum Error Correction at Scale", results[0].Title)
	assert.Equal(t, "http://arxiv.org/abs/2601.01234v1", results[0].URL)
	assert.InDelta(t, 0.8, results[0].QualityScore, 1e-9)
}

func TestRSSMatchesQueryTerms(t *testing.T) {
	const feed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Test Feed</title>
  <item>
    <title>Fusion startup hits milestone</title>
    <link>https://news.example/fusion</link>
    <description>A fusion energy startup reported sustained plasma confinement.</description>
  </item>
  <item>
    <title>Local sports roundup</title>
    <link>https://news.example/sports</link>
    <description>Weekend scores and highlights.</description>
  </item>
</channel></rss>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feed))
	}))
	defer srv.Close()

	r := NewRSS([]string{srv.URL}, 40)
	results, err := r.Search(context.Background(), "fusion energy", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://news.example/fusion", results[0].URL)
}

func TestRSSToleratesDeadFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel><title>Live</title>
  <item><title>Fusion update</title><link>https://news.example/ok</link>
  <description>fusion containment progress</description></item>
</channel></rss>`))
	}))
	defer srv.Close()

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer dead.Close()

	r := NewRSS([]string{dead.URL, srv.URL}, 40)
	results, err := r.Search(context.Background(), "fusion", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestResolveDDGRedirect(t *testing.T) {
	got := resolveDDGRedirect("//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.org%2Fpage&rut=abc")
	assert.Equal(t, "https://example.org/page", got)

	got = resolveDDGRedirect("https://example.org/direct")
	assert.Equal(t, "https://example.org/direct", got)

	assert.Empty(t, resolveDDGRedirect("/relative/no-redirect"))
}

func TestScoreSnippet(t *testing.T) {
	long := make([]byte, 250)
	for i := range long {
		long[i] = 'a'
	}
	assert.InDelta(t, 0.8, scoreSnippet(string(long), 0.8), 1e-9)
	assert.InDelta(t, 0.64, scoreSnippet("a snippet of middling length for scoring here", 0.8), 1e-9)
	assert.InDelta(t, 0.4, scoreSnippet("tiny", 0.8), 1e-9)
}
