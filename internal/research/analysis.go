package research

import (
	"context"
	"encoding/json"
	"strings"
	"unicode"

	"deepscout/internal/logging"
	"deepscout/internal/router"
	"deepscout/internal/types"
)

// classifyDomain asks the model for a one-word research domain, falling back
// to keyword matching when no model is reachable.
func (o *Orchestrator) classifyDomain(ctx context.Context, query string) string {
	prompt := []router.Message{
		{Role: "system", Content: "Classify the research query into exactly one domain word: medical, legal, financial, technology, science, news, or general. Reply with only the word."},
		{Role: "user", Content: query},
	}
	out, rec, err := o.cfg.LLM.Complete(ctx, prompt, types.ComplexityLow, o.cfg.PrivacyMode)
	if err == nil {
		domain := strings.ToLower(strings.TrimSpace(out))
		if isDomainWord(domain) {
			logging.Router("domain classified by %s: %s", rec.Model, domain)
			return domain
		}
	}
	return heuristicDomain(query)
}

func isDomainWord(s string) bool {
	switch s {
	case "medical", "legal", "financial", "technology", "science", "news", "general":
		return true
	}
	return false
}

var domainKeywords = map[string][]string{
	"medical":    {"health", "disease", "treatment", "symptom", "clinical", "drug", "therapy", "cancer", "vaccine"},
	"legal":      {"law", "legal", "court", "regulation", "statute", "lawsuit", "compliance"},
	"financial":  {"stock", "market", "finance", "investment", "tax", "revenue", "earnings"},
	"technology": {"software", "algorithm", "protocol", "compiler", "database", "network", "machine learning", "api"},
	"science":    {"physics", "chemistry", "biology", "quantum", "genome", "climate", "experiment"},
	"news":       {"election", "breaking", "announcement", "latest", "today"},
}

func heuristicDomain(query string) string {
	q := strings.ToLower(query)
	best, bestHits := "general", 0
	for domain, words := range domainKeywords {
		hits := 0
		for _, w := range words {
			if strings.Contains(q, w) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = domain, hits
		}
	}
	return best
}

// planQueries proposes the query variants for the next cycle. The model sees
// what previous cycles already covered so replanning explores new angles.
func (o *Orchestrator) planQueries(ctx context.Context, state *types.ResearchState) []string {
	var sb strings.Builder
	sb.WriteString("Research question: ")
	sb.WriteString(state.Query)
	sb.WriteString("\n")
	if len(state.Entities) > 0 {
		sb.WriteString("Entities already found: ")
		for i, e := range state.Entities {
			if i >= 15 {
				break
			}
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(e.Name)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(`Propose up to 4 distinct search queries that would surface new information. Respond as a JSON array of strings, nothing else.`)

	prompt := []router.Message{
		{Role: "system", Content: "You are a research planner. Output only valid JSON."},
		{Role: "user", Content: sb.String()},
	}
	out, rec, err := o.cfg.LLM.Complete(ctx, prompt, types.ComplexityMedium, o.cfg.PrivacyMode)
	if err == nil {
		if queries := parseJSONStrings(out); len(queries) > 0 {
			logging.Router("queries planned by %s: %d variants", rec.Model, len(queries))
			return queries
		}
	}
	return fallbackQueries(state)
}

// fallbackQueries degrades planning to mechanical variants of the question.
func fallbackQueries(state *types.ResearchState) []string {
	base := state.Query
	variants := []string{base}
	switch state.Cycle {
	case 0:
		variants = append(variants, base+" overview", base+" explained")
	default:
		variants = append(variants, base+" recent research", base+" criticism limitations")
	}
	return variants
}

// parseJSONStrings extracts a JSON string array from model output that may
// wrap it in prose or code fences.
func parseJSONStrings(out string) []string {
	start := strings.Index(out, "[")
	end := strings.LastIndex(out, "]")
	if start < 0 || end <= start {
		return nil
	}
	var arr []string
	if err := json.Unmarshal([]byte(out[start:end+1]), &arr); err != nil {
		return nil
	}
	cleaned := arr[:0]
	for _, s := range arr {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned
}

// extractionPayload is the JSON shape the extraction prompt requests.
type extractionPayload struct {
	Entities []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"entities"`
	Facts []struct {
		Statement  string  `json:"statement"`
		Source     string  `json:"source"`
		Confidence float64 `json:"confidence"`
	} `json:"facts"`
}

// extract pulls entities and facts out of the cycle's results, trying the
// model first and degrading to heuristics per batch.
func (o *Orchestrator) extract(ctx context.Context, results []types.SourceResult) ([]types.Entity, []types.Fact) {
	if len(results) == 0 {
		return nil, nil
	}

	entities, facts, err := o.extractWithModel(ctx, results)
	if err == nil {
		return entities, facts
	}
	logging.Pipeline("model extraction unavailable, using heuristics: %v", err)

	for _, r := range results {
		entities = append(entities, heuristicEntities(r)...)
		facts = append(facts, heuristicFacts(r)...)
	}
	return entities, facts
}

func (o *Orchestrator) extractWithModel(ctx context.Context, results []types.SourceResult) ([]types.Entity, []types.Fact, error) {
	var sb strings.Builder
	sb.WriteString("Extract named entities and factual statements from these search results.\n")
	sb.WriteString(`Respond as JSON: {"entities":[{"name":"...","type":"..."}],"facts":[{"statement":"...","source":"<url>","confidence":0.0}]}` + "\n\n")
	for i, r := range results {
		if i >= 20 {
			break
		}
		sb.WriteString(r.URL)
		sb.WriteString("\n")
		sb.WriteString(r.Title)
		sb.WriteString("\n")
		sb.WriteString(r.Snippet)
		sb.WriteString("\n\n")
	}

	prompt := []router.Message{
		{Role: "system", Content: "You are an information extraction engine. Output only valid JSON."},
		{Role: "user", Content: sb.String()},
	}
	out, _, err := o.cfg.LLM.Complete(ctx, prompt, types.ComplexityMedium, o.cfg.PrivacyMode)
	if err != nil {
		return nil, nil, err
	}

	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start < 0 || end <= start {
		return nil, nil, errMalformedExtraction
	}
	var payload extractionPayload
	if err := json.Unmarshal([]byte(out[start:end+1]), &payload); err != nil {
		return nil, nil, err
	}

	entities := make([]types.Entity, 0, len(payload.Entities))
	for _, e := range payload.Entities {
		if e.Name == "" {
			continue
		}
		entities = append(entities, types.Entity{Name: e.Name, Type: e.Type, Mentions: 1})
	}
	facts := make([]types.Fact, 0, len(payload.Facts))
	for _, f := range payload.Facts {
		if f.Statement == "" {
			continue
		}
		fact := types.Fact{Statement: f.Statement, Confidence: f.Confidence}
		if f.Source != "" {
			fact.Sources = []string{f.Source}
		}
		facts = append(facts, fact)
	}
	return entities, facts, nil
}

var errMalformedExtraction = jsonError("extraction output contained no JSON object")

type jsonError string

func (e jsonError) Error() string { return string(e) }

// heuristicEntities lifts capitalized word runs out of a result title.
func heuristicEntities(r types.SourceResult) []types.Entity {
	var entities []types.Entity
	words := strings.Fields(r.Title)
	var run []string
	flush := func() {
		if len(run) > 0 {
			name := strings.Join(run, " ")
			if len(name) >= 3 {
				entities = append(entities, types.Entity{Name: name, Type: "unknown", Mentions: 1})
			}
			run = nil
		}
	}
	for i, w := range words {
		trimmed := strings.Trim(w, `.,;:"'()?!`)
		if trimmed != "" && unicode.IsUpper([]rune(trimmed)[0]) && i > 0 {
			run = append(run, trimmed)
		} else {
			flush()
		}
	}
	flush()
	return entities
}

// heuristicFacts treats substantial snippet sentences as low-confidence
// facts cited to their source URL.
func heuristicFacts(r types.SourceResult) []types.Fact {
	var facts []types.Fact
	for _, sentence := range strings.Split(r.Snippet, ". ") {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) < 40 {
			continue
		}
		facts = append(facts, types.Fact{
			Statement:  sentence,
			Sources:    []string{r.URL},
			Confidence: 0.4 * (1 + r.QualityScore) / 2,
		})
	}
	return facts
}
