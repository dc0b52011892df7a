package memory

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"deepscout/internal/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEffectivenessEMA(t *testing.T) {
	s := testStore(t)

	// Unknown provider starts at the neutral default.
	if got := s.GetSourceEffectiveness("arxiv", "science"); got != 0.5 {
		t.Fatalf("default effectiveness = %v, want 0.5", got)
	}

	// One success at quality 0.9: 0.3*0.9 + 0.7*0.5 = 0.62.
	if err := s.RecordSourceOutcome("arxiv", "science", true, 0.9); err != nil {
		t.Fatalf("RecordSourceOutcome: %v", err)
	}
	got := s.GetSourceEffectiveness("arxiv", "science")
	if math.Abs(got-0.62) > 1e-9 {
		t.Fatalf("effectiveness after success = %v, want 0.62", got)
	}

	// A failure contributes zero: 0.3*0 + 0.7*0.62 = 0.434.
	if err := s.RecordSourceOutcome("arxiv", "science", false, 0); err != nil {
		t.Fatalf("RecordSourceOutcome: %v", err)
	}
	got = s.GetSourceEffectiveness("arxiv", "science")
	if math.Abs(got-0.434) > 1e-9 {
		t.Fatalf("effectiveness after failure = %v, want 0.434", got)
	}
}

func TestEffectivenessScopedByDomain(t *testing.T) {
	s := testStore(t)

	if err := s.RecordSourceOutcome("pubmed", "medical", true, 1.0); err != nil {
		t.Fatalf("RecordSourceOutcome: %v", err)
	}
	medical := s.GetSourceEffectiveness("pubmed", "medical")
	if medical <= 0.5 {
		t.Fatalf("medical effectiveness = %v, want above default", medical)
	}
	// The other domain falls back to the provider average, not the default.
	other := s.GetSourceEffectiveness("pubmed", "legal")
	if math.Abs(other-medical) > 1e-9 {
		t.Fatalf("cross-domain fallback = %v, want provider average %v", other, medical)
	}
}

func TestRecordAccessFailureIdempotentByURL(t *testing.T) {
	s := testStore(t)

	url := "https://example.org/paywalled"
	if err := s.RecordAccessFailure(url, "duckduckgo", "access_denied", "403"); err != nil {
		t.Fatalf("RecordAccessFailure: %v", err)
	}
	if err := s.RecordAccessFailure(url, "duckduckgo", "access_denied", "403"); err != nil {
		t.Fatalf("RecordAccessFailure: %v", err)
	}

	f, err := s.GetAccessFailure(url)
	if err != nil {
		t.Fatalf("GetAccessFailure: %v", err)
	}
	if f.RetryCount != 2 {
		t.Fatalf("retry_count = %d after two records, want 2", f.RetryCount)
	}
	if !s.IsKnownFailure(url) {
		t.Fatal("IsKnownFailure = false for a recorded URL")
	}
	if s.IsKnownFailure("https://example.org/fine") {
		t.Fatal("IsKnownFailure = true for an unknown URL")
	}
}

func TestDocumentDedupePerSession(t *testing.T) {
	s := testStore(t)

	r := types.SourceResult{URL: "https://example.org/a", Title: "first", Snippet: "body", Provider: "arxiv", QualityScore: 0.8}
	if err := s.StoreDocument("sess-1", r); err != nil {
		t.Fatalf("StoreDocument: %v", err)
	}
	r.Title = "updated"
	if err := s.StoreDocument("sess-1", r); err != nil {
		t.Fatalf("StoreDocument: %v", err)
	}

	docs, err := s.SessionDocuments("sess-1")
	if err != nil {
		t.Fatalf("SessionDocuments: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d documents, want 1 after re-store", len(docs))
	}
	if docs[0].Title != "updated" {
		t.Fatalf("title = %q, want the re-stored value", docs[0].Title)
	}
}

func TestSearchSimilarRanksByRelevance(t *testing.T) {
	s := testStore(t)

	docs := []types.SourceResult{
		{URL: "https://a", Title: "quantum error correction codes", Snippet: "surface codes and quantum error correction thresholds"},
		{URL: "https://b", Title: "gardening tips", Snippet: "how to grow tomatoes in small spaces"},
		{URL: "https://c", Title: "quantum computing hardware", Snippet: "superconducting qubits overview"},
	}
	for _, d := range docs {
		if err := s.StoreDocument("sess-1", d); err != nil {
			t.Fatalf("StoreDocument: %v", err)
		}
	}

	hits, err := s.SearchSimilar("sess-1", "quantum error correction", 10)
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("no hits for an on-topic query")
	}
	if hits[0].URL != "https://a" {
		t.Fatalf("top hit = %s, want the fully matching document", hits[0].URL)
	}
	for _, h := range hits {
		if h.URL == "https://b" {
			t.Fatal("off-topic document ranked as a hit")
		}
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	s := testStore(t)

	state := &types.ResearchState{
		SessionID:   "sess-42",
		Phase:       types.PhaseCollect,
		Query:       "test query",
		Domain:      "science",
		PrivacyMode: types.PrivacyLocalOnly,
		Cycle:       2,
		Entities:    []types.Entity{{Name: "Widget", Type: "thing", Mentions: 3}},
		Facts:       []types.Fact{{Statement: "widgets exist", Sources: []string{"https://a"}, Confidence: 0.7}},
		CycleHistory: []types.CycleRecord{
			{Cycle: 1, NewEntities: 1, Metrics: types.SaturationMetrics{NewEntitiesRatio: 1}},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.SaveCheckpoint(state); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	got, err := s.LoadCheckpoint("sess-42")
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if got.Phase != types.PhaseCollect || got.Cycle != 2 || got.Query != "test query" {
		t.Fatalf("restored state = %+v, want the saved fields", got)
	}
	if len(got.CycleHistory) != 1 || got.CycleHistory[0].Metrics.NewEntitiesRatio != 1 {
		t.Fatal("cycle history did not survive the round trip")
	}

	// A second save for the same session overwrites, not duplicates.
	state.Phase = types.PhaseEvaluate
	if err := s.SaveCheckpoint(state); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	sessions, err := s.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	if sessions[0].Phase != types.PhaseEvaluate {
		t.Fatalf("listed phase = %s, want the latest checkpoint", sessions[0].Phase)
	}
}

func TestDeleteSessionRemovesCheckpointAndDocuments(t *testing.T) {
	s := testStore(t)

	state := &types.ResearchState{SessionID: "gone", Query: "q", Phase: types.PhasePlan}
	if err := s.SaveCheckpoint(state); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	if err := s.StoreDocument("gone", types.SourceResult{URL: "https://a", Title: "t"}); err != nil {
		t.Fatalf("StoreDocument: %v", err)
	}

	if err := s.DeleteSession("gone"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := s.LoadCheckpoint("gone"); err == nil {
		t.Fatal("checkpoint survived deletion")
	}
	docs, err := s.SessionDocuments("gone")
	if err != nil {
		t.Fatalf("SessionDocuments: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("%d documents survived deletion", len(docs))
	}
}
