package router

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"deepscout/internal/types"
)

// stubClient is a scriptable tier client.
type stubClient struct {
	model      string
	available  bool
	completion string
	err        error
	calls      int
	stream     []TokenEvent
}

func (c *stubClient) Model() string                      { return c.model }
func (c *stubClient) Available(ctx context.Context) bool { return c.available }

func (c *stubClient) Complete(ctx context.Context, messages []Message) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.completion, nil
}

func (c *stubClient) Stream(ctx context.Context, messages []Message) (<-chan TokenEvent, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make(chan TokenEvent, len(c.stream)+1)
	for _, ev := range c.stream {
		out <- ev
	}
	close(out)
	return out, nil
}

func TestValidateRejectsCloudTierInLocalRows(t *testing.T) {
	bad := PreferenceTable{
		types.PrivacyLocalOnly: {
			types.ComplexityHigh: {TierLocalPowerful, TierCloudBest},
		},
	}
	if err := bad.Validate(); err == nil {
		t.Fatal("Validate accepted a cloud tier under local_only")
	}
	if _, err := New(bad, nil); err == nil {
		t.Fatal("New accepted an invalid table")
	}
}

func TestLocalOnlyNeverSelectsCloud(t *testing.T) {
	// Cloud clients exist and are available, but local_only rows cannot
	// reach them structurally.
	clients := map[Tier]Client{
		TierCloudBest: &stubClient{model: "cloud-big", available: true, completion: "cloud"},
		TierCloudFast: &stubClient{model: "cloud-small", available: true, completion: "cloud"},
	}
	r, err := New(DefaultPreferences(), clients)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, complexity := range []types.Complexity{types.ComplexityLow, types.ComplexityMedium, types.ComplexityHigh} {
		_, err := r.Select(context.Background(), complexity, types.PrivacyLocalOnly)
		if !errors.Is(err, ErrModelUnavailable) {
			t.Fatalf("%s: err = %v, want ErrModelUnavailable with no local model", complexity, err)
		}
	}
}

func TestSelectWalksRowInOrder(t *testing.T) {
	clients := map[Tier]Client{
		TierLocalPowerful: &stubClient{model: "big", available: false},
		TierLocalFast:     &stubClient{model: "small", available: true},
	}
	r, err := New(DefaultPreferences(), clients)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec, err := r.Select(context.Background(), types.ComplexityHigh, types.PrivacyLocalOnly)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if rec.Tier != TierLocalFast {
		t.Fatalf("tier = %s, want local-fast fallback when powerful is down", rec.Tier)
	}
	if !rec.PrivacyCompliant {
		t.Fatal("recommendation not marked privacy compliant")
	}
}

func TestCompleteFallsBackOnOverloadOnly(t *testing.T) {
	overloaded := &stubClient{model: "big", available: true, err: ErrModelOverloaded}
	fallback := &stubClient{model: "small", available: true, completion: "answer"}
	clients := map[Tier]Client{
		TierLocalPowerful: overloaded,
		TierLocalFast:     fallback,
	}
	r, _ := New(DefaultPreferences(), clients)

	text, rec, err := r.Complete(context.Background(), []Message{{Role: "user", Content: "q"}}, types.ComplexityMedium, types.PrivacyLocalOnly)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "answer" || rec.Tier != TierLocalFast {
		t.Fatalf("got %q from %s, want fallback answer from local-fast", text, rec.Tier)
	}

	// A non-retryable failure must not walk the row.
	overloaded.err = errors.New("model returned garbage")
	fallback.calls = 0
	_, _, err = r.Complete(context.Background(), []Message{{Role: "user", Content: "q"}}, types.ComplexityMedium, types.PrivacyLocalOnly)
	if err == nil {
		t.Fatal("Complete succeeded past a non-retryable failure")
	}
	if fallback.calls != 0 {
		t.Fatal("non-retryable failure still fell back to the next tier")
	}
}

func TestCompleteUnderCloudAllowedPrefersDeclaredRow(t *testing.T) {
	cloud := &stubClient{model: "cloud-big", available: true, completion: "cloud answer"}
	local := &stubClient{model: "big", available: true, completion: "local answer"}
	clients := map[Tier]Client{
		TierCloudBest:     cloud,
		TierLocalPowerful: local,
	}
	r, _ := New(DefaultPreferences(), clients)

	text, rec, err := r.Complete(context.Background(), []Message{{Role: "user", Content: "q"}}, types.ComplexityHigh, types.PrivacyCloudAllowed)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if rec.Tier != TierCloudBest || text != "cloud answer" {
		t.Fatalf("high/cloud_allowed routed to %s, want cloud-best", rec.Tier)
	}
}

func TestStreamAlwaysTerminates(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	client := &stubClient{
		model:     "small",
		available: true,
		stream: []TokenEvent{
			{Token: "hel"},
			{Token: "lo"},
			{Done: true},
		},
	}
	r, _ := New(DefaultPreferences(), map[Tier]Client{TierLocalFast: client})

	ch, rec, err := r.Stream(context.Background(), []Message{{Role: "user", Content: "q"}}, types.ComplexityLow, types.PrivacyLocalOnly)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var sb strings.Builder
	terminal := false
	for ev := range ch {
		sb.WriteString(ev.Token)
		if ev.Done || ev.Err != nil {
			terminal = true
		}
		if ev.Model != rec.Model {
			t.Fatalf("event model = %q, want %q", ev.Model, rec.Model)
		}
	}
	if !terminal {
		t.Fatal("stream closed without a terminal event")
	}
	if sb.String() != "hello" {
		t.Fatalf("streamed %q, want %q", sb.String(), "hello")
	}
}

func TestStreamSynthesizesTerminalOnSilentClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	// Client closes without a Done marker; the router must add one.
	client := &stubClient{
		model:     "small",
		available: true,
		stream:    []TokenEvent{{Token: "partial"}},
	}
	r, _ := New(DefaultPreferences(), map[Tier]Client{TierLocalFast: client})

	ch, _, err := r.Stream(context.Background(), nil, types.ComplexityLow, types.PrivacyLocalOnly)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	terminal := false
	for ev := range ch {
		if ev.Done || ev.Err != nil {
			terminal = true
		}
	}
	if !terminal {
		t.Fatal("silent client close did not synthesize a terminal event")
	}
}

func TestRecommendPrivacyMode(t *testing.T) {
	r, _ := New(DefaultPreferences(), nil)

	mode, reason := r.RecommendPrivacyMode("treatment options for my diagnosis")
	if mode != types.PrivacyLocalOnly {
		t.Fatalf("mode = %s, want local_only for medical content (%s)", mode, reason)
	}

	mode, _ = r.RecommendPrivacyMode("history of the roman aqueducts")
	if mode != types.PrivacyCloudAllowed {
		t.Fatalf("mode = %s, want cloud_allowed for neutral content", mode)
	}
}
