package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"deepscout/internal/aggregate"
	"deepscout/internal/logging"
	"deepscout/internal/saturation"
	"deepscout/internal/types"
)

// runClarify classifies the query into a research domain and logs the
// privacy recommendation. An explicit privacy mode is never overridden.
func (o *Orchestrator) runClarify(ctx context.Context) (types.Phase, error) {
	o.mu.RLock()
	query := o.state.Query
	o.mu.RUnlock()

	recommended, why := o.cfg.LLM.RecommendPrivacyMode(query)
	logging.Session("privacy recommendation for session: %s (%s)", recommended, why)
	if recommended == types.PrivacyLocalOnly && o.cfg.PrivacyMode == types.PrivacyCloudAllowed {
		o.emitEvent(types.EventModelInfo, "", "note: query looks privacy-sensitive; consider local-only mode")
	}

	domain := o.classifyDomain(ctx, query)

	o.mu.Lock()
	o.state.Domain = domain
	o.mu.Unlock()
	logging.Pipeline("clarified query domain: %s", domain)
	return types.PhasePlan, nil
}

// runPlan produces the cycle's query variants and the planned source
// categories. Later cycles replan using what earlier cycles learned.
func (o *Orchestrator) runPlan(ctx context.Context) (types.Phase, error) {
	o.mu.RLock()
	state := *o.state
	o.mu.RUnlock()

	queries := o.planQueries(ctx, &state)
	categories := o.cfg.Registry.Categories()

	o.mu.Lock()
	o.state.PlannedQueries = queries
	o.state.PlannedCategories = categories
	approved := o.state.Approved
	o.mu.Unlock()

	logging.Pipeline("planned %d queries over %d categories", len(queries), len(categories))

	if !o.cfg.AutoApprove && !approved {
		return types.PhaseAwaitApproval, nil
	}
	return types.PhaseCollect, nil
}

// runAwaitApproval blocks until the plan is approved or the context ends.
func (o *Orchestrator) runAwaitApproval(ctx context.Context) (types.Phase, error) {
	o.emitEvent(types.EventModelInfo, "", "research plan awaiting approval")
	select {
	case <-ctx.Done():
		return types.PhaseAwaitApproval, ctx.Err()
	case <-o.approveCh:
	}
	o.mu.Lock()
	o.state.Approved = true
	o.mu.Unlock()
	logging.Session("research plan approved")
	return types.PhaseCollect, nil
}

// runCollect executes one collection cycle against the providers.
func (o *Orchestrator) runCollect(ctx context.Context) (types.Phase, error) {
	o.mu.Lock()
	o.state.Cycle++
	cycle := o.state.Cycle
	queries := o.state.PlannedQueries
	domain := o.state.Domain
	known := o.state.KnownURLs()
	sessionID := o.state.SessionID
	query := o.state.Query
	o.cycleResults = nil
	o.cycleDuplicates = 0
	o.cycleFetched = 0
	o.mu.Unlock()

	if len(queries) > 0 {
		query = queries[(cycle-1)%len(queries)]
	}
	providers := o.cfg.Registry.Names()
	logging.Pipeline("cycle %d: collecting %q across %d providers", cycle, query, len(providers))

	results, err := o.cfg.Collector.Collect(ctx, query, domain, providers, o.cfg.MaxResultsPerCycle)
	if err != nil {
		if errors.Is(err, aggregate.ErrSourceExhausted) {
			o.mu.Lock()
			o.state.SourceExhausted = true
			o.mu.Unlock()
			logging.Pipeline("cycle %d: %v", cycle, err)
			// Nothing new to process; jump straight to evaluation so the
			// stop decision sees the exhaustion.
			return types.PhaseEvaluate, nil
		}
		return types.PhaseCollect, err
	}

	fresh := make([]types.SourceResult, 0, len(results))
	contributed := make(map[string]struct {
		count   int
		quality float64
	})
	duplicates := 0
	for _, r := range results {
		if known[r.URL] {
			duplicates++
			continue
		}
		fresh = append(fresh, r)
		c := contributed[r.Provider]
		c.count++
		c.quality += r.QualityScore
		contributed[r.Provider] = c
		if err := o.cfg.Memory.StoreDocument(sessionID, r); err != nil {
			logging.Memory("failed to store document %s: %v", r.URL, err)
		}
	}

	// Fold outcomes into learned effectiveness: providers that contributed
	// average their quality, providers that came back empty score a failure.
	for _, name := range providers {
		c, ok := contributed[name]
		if ok {
			if err := o.cfg.Memory.RecordSourceOutcome(name, domain, true, c.quality/float64(c.count)); err != nil {
				logging.Memory("failed to record outcome for %s: %v", name, err)
			}
		} else if err := o.cfg.Memory.RecordSourceOutcome(name, domain, false, 0); err != nil {
			logging.Memory("failed to record outcome for %s: %v", name, err)
		}
	}

	o.mu.Lock()
	o.state.SourceResults = append(o.state.SourceResults, fresh...)
	o.markQueriedCategories(contributed)
	o.cycleResults = fresh
	o.cycleDuplicates = duplicates
	o.cycleFetched = len(results)
	o.mu.Unlock()

	logging.Pipeline("cycle %d: %d new results, %d already known", cycle, len(fresh), duplicates)
	return types.PhaseProcess, nil
}

// markQueriedCategories records which planned categories yielded results.
// Caller holds o.mu.
func (o *Orchestrator) markQueriedCategories(contributed map[string]struct {
	count   int
	quality float64
}) {
	seen := make(map[string]bool, len(o.state.QueriedCategories))
	for _, c := range o.state.QueriedCategories {
		seen[c] = true
	}
	for name := range contributed {
		gate, ok := o.cfg.Registry.Gate(name)
		if !ok {
			continue
		}
		if cat := gate.Category(); !seen[cat] {
			seen[cat] = true
			o.state.QueriedCategories = append(o.state.QueriedCategories, cat)
		}
	}
}

// runProcess extracts entities and facts from the cycle's new results.
func (o *Orchestrator) runProcess(ctx context.Context) (types.Phase, error) {
	o.mu.RLock()
	results := o.cycleResults
	o.mu.RUnlock()

	if len(results) == 0 {
		results = o.pendingResults()
	}

	entities, facts := o.extract(ctx, results)

	o.mu.Lock()
	newEntities := o.mergeEntities(entities)
	newFacts := o.mergeFacts(facts)
	o.cycleNewEntities = newEntities
	o.cycleNewFacts = newFacts
	o.mu.Unlock()

	logging.Pipeline("processed %d results: %d new entities, %d new facts", len(results), newEntities, newFacts)
	return types.PhaseAnalyze, nil
}

// runAnalyze cross-verifies facts and flags contradictions.
func (o *Orchestrator) runAnalyze(ctx context.Context) (types.Phase, error) {
	o.mu.Lock()
	verified := 0
	for i := range o.state.Facts {
		f := &o.state.Facts[i]
		if !f.Verified && len(f.Sources) >= 2 {
			f.Verified = true
			verified++
		}
	}
	contradictions := o.flagContradictions()
	o.mu.Unlock()

	logging.Pipeline("analysis: %d facts newly verified, %d contradictions flagged", verified, contradictions)
	return types.PhaseEvaluate, nil
}

// runEvaluate closes the cycle: computes saturation metrics, appends the
// cycle record, and decides whether to replan or synthesize.
func (o *Orchestrator) runEvaluate(ctx context.Context) (types.Phase, error) {
	o.mu.Lock()

	in := saturation.CycleInput{
		NewEntities:       o.cycleNewEntities,
		NewFacts:          o.cycleNewFacts,
		TotalEntities:     len(o.state.Entities) - o.cycleNewEntities,
		TotalFacts:        len(o.state.Facts) - o.cycleNewFacts,
		CitationsSeen:     o.cycleDuplicates,
		CitationsTotal:    o.cycleFetched,
		CategoriesQueried: len(o.state.QueriedCategories),
		CategoriesPlanned: len(o.state.PlannedCategories),
	}
	metrics := saturation.Compute(in)

	record := types.CycleRecord{
		Cycle:          o.state.Cycle,
		NewEntities:    o.cycleNewEntities,
		NewFacts:       o.cycleNewFacts,
		TotalEntities:  len(o.state.Entities),
		TotalFacts:     len(o.state.Facts),
		SourcesQueried: len(o.state.SourceResults),
		Metrics:        metrics,
		CompletedAt:    time.Now(),
	}
	o.state.CycleHistory = append(o.state.CycleHistory, record)
	o.state.Saturation = metrics

	exhausted := o.state.SourceExhausted
	history := o.state.CycleHistory
	o.cycleNewEntities = 0
	o.cycleNewFacts = 0
	o.mu.Unlock()

	if exhausted {
		o.mu.Lock()
		o.state.AppendStopReason(aggregate.ErrSourceExhausted.Error())
		o.mu.Unlock()
		return types.PhaseSynthesize, nil
	}

	stop, reason := o.cfg.Evaluator.ShouldStop(history)
	logging.Saturation("cycle %d evaluation: stop=%v (%s)", record.Cycle, stop, reason)
	if stop {
		o.mu.Lock()
		o.state.AppendStopReason(reason)
		o.mu.Unlock()
		return types.PhaseSynthesize, nil
	}
	return types.PhasePlan, nil
}

// runSynthesize produces the final report and ends the session.
func (o *Orchestrator) runSynthesize(ctx context.Context) (types.Phase, error) {
	o.mu.RLock()
	state := *o.state
	o.mu.RUnlock()

	report, model := o.buildReport(ctx, &state)
	if model != "" {
		o.emitEvent(types.EventModelInfo, model, "synthesizing report")
	}

	o.mu.Lock()
	o.state.Report = report
	o.mu.Unlock()

	logging.Session("session %s synthesized report (%d bytes)", state.SessionID, len(report))
	return types.PhaseDone, nil
}

// pendingResults returns results collected after the last closed cycle.
// Used when a resumed session lost its in-flight cycle scratch.
func (o *Orchestrator) pendingResults() []types.SourceResult {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var since time.Time
	if n := len(o.state.CycleHistory); n > 0 {
		since = o.state.CycleHistory[n-1].CompletedAt
	}
	var pending []types.SourceResult
	for _, r := range o.state.SourceResults {
		if r.RetrievedAt.After(since) {
			pending = append(pending, r)
		}
	}
	return pending
}

// mergeEntities folds extracted entities into state, deduplicating by
// case-folded name. Returns how many were genuinely new. Caller holds o.mu.
func (o *Orchestrator) mergeEntities(entities []types.Entity) int {
	known := make(map[string]int, len(o.state.Entities))
	for i, e := range o.state.Entities {
		known[strings.ToLower(e.Name)] = i
	}
	added := 0
	for _, e := range entities {
		key := strings.ToLower(e.Name)
		if i, ok := known[key]; ok {
			o.state.Entities[i].Mentions += e.Mentions
			continue
		}
		known[key] = len(o.state.Entities)
		o.state.Entities = append(o.state.Entities, e)
		added++
	}
	return added
}

// mergeFacts folds extracted facts into state, deduplicating by normalized
// statement and accumulating sources. Returns how many were new. Caller
// holds o.mu.
func (o *Orchestrator) mergeFacts(facts []types.Fact) int {
	known := make(map[string]int, len(o.state.Facts))
	for i, f := range o.state.Facts {
		known[normalizeStatement(f.Statement)] = i
	}
	added := 0
	for _, f := range facts {
		key := normalizeStatement(f.Statement)
		if i, ok := known[key]; ok {
			existing := &o.state.Facts[i]
			for _, src := range f.Sources {
				if !containsString(existing.Sources, src) {
					existing.Sources = append(existing.Sources, src)
				}
			}
			continue
		}
		known[key] = len(o.state.Facts)
		o.state.Facts = append(o.state.Facts, f)
		added++
	}
	return added
}

// flagContradictions marks fact pairs where one statement negates another.
// Returns the number of pairs flagged. Caller holds o.mu.
func (o *Orchestrator) flagContradictions() int {
	flagged := 0
	for i := range o.state.Facts {
		for j := i + 1; j < len(o.state.Facts); j++ {
			a, b := &o.state.Facts[i], &o.state.Facts[j]
			if statementsConflict(a.Statement, b.Statement) {
				note := fmt.Sprintf("conflicts with: %s", b.Statement)
				if !containsString(a.Contradictions, note) {
					a.Contradictions = append(a.Contradictions, note)
					flagged++
				}
			}
		}
	}
	return flagged
}

func normalizeStatement(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimRight(s, ". "))), " ")
}

// statementsConflict detects the crude "X is Y" vs "X is not Y" pattern.
// Deeper contradiction detection belongs to the analysis model, not here.
func statementsConflict(a, b string) bool {
	na, nb := normalizeStatement(a), normalizeStatement(b)
	if na == nb {
		return false
	}
	return strings.Replace(na, " is not ", " is ", 1) == nb ||
		strings.Replace(nb, " is not ", " is ", 1) == na
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
