package research

import (
	"context"
	"fmt"
	"strings"

	"deepscout/internal/logging"
	"deepscout/internal/router"
	"deepscout/internal/types"
)

// buildReport synthesizes the final report. The model gets the verified
// facts and top sources; if no model is reachable the report is assembled
// mechanically so a stopped or exhausted session still ends with output.
func (o *Orchestrator) buildReport(ctx context.Context, state *types.ResearchState) (report, model string) {
	out, rec, err := o.cfg.LLM.Complete(ctx, reportPrompt(state), types.ComplexityHigh, state.PrivacyMode)
	if err == nil && strings.TrimSpace(out) != "" {
		return appendCoverageNotes(out, state), rec.Model
	}
	if err != nil {
		logging.Router("report synthesis model unavailable, assembling fallback: %v", err)
	}
	return fallbackReport(state), ""
}

func reportPrompt(state *types.ResearchState) []router.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a research report answering: %s\n\n", state.Query)

	sb.WriteString("Verified facts:\n")
	for _, f := range state.Facts {
		if !f.Verified {
			continue
		}
		fmt.Fprintf(&sb, "- %s (sources: %s)\n", f.Statement, strings.Join(f.Sources, ", "))
	}
	sb.WriteString("\nUnverified facts:\n")
	for _, f := range state.Facts {
		if f.Verified {
			continue
		}
		fmt.Fprintf(&sb, "- %s\n", f.Statement)
	}
	sb.WriteString("\nCite sources inline by URL. Distinguish verified from single-source claims.")

	return []router.Message{
		{Role: "system", Content: "You are a research analyst writing a sourced report in markdown."},
		{Role: "user", Content: sb.String()},
	}
}

// fallbackReport assembles a plain markdown report from collected state.
func fallbackReport(state *types.ResearchState) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Research Report: %s\n\n", state.Query)
	fmt.Fprintf(&sb, "Domain: %s. Cycles completed: %d. Sources collected: %d.\n\n",
		state.Domain, state.Cycle, len(state.SourceResults))

	if verified := factsByVerified(state.Facts, true); len(verified) > 0 {
		sb.WriteString("## Verified Findings\n\n")
		for _, f := range verified {
			fmt.Fprintf(&sb, "- %s\n  - Sources: %s\n", f.Statement, strings.Join(f.Sources, ", "))
		}
		sb.WriteString("\n")
	}
	if unverified := factsByVerified(state.Facts, false); len(unverified) > 0 {
		sb.WriteString("## Single-Source Claims\n\n")
		for _, f := range unverified {
			fmt.Fprintf(&sb, "- %s\n", f.Statement)
		}
		sb.WriteString("\n")
	}
	if len(state.SourceResults) > 0 {
		sb.WriteString("## Sources\n\n")
		for _, r := range state.SourceResults {
			fmt.Fprintf(&sb, "- [%s](%s) (%s)\n", r.Title, r.URL, r.Provider)
		}
		sb.WriteString("\n")
	}

	return appendCoverageNotes(sb.String(), state)
}

// appendCoverageNotes adds the honest-gaps section: why the research
// stopped and what could not be found.
func appendCoverageNotes(report string, state *types.ResearchState) string {
	var sb strings.Builder
	sb.WriteString(report)
	if !strings.HasSuffix(report, "\n") {
		sb.WriteString("\n")
	}

	sb.WriteString("\n## Coverage Notes\n\n")
	if len(state.StopReason) > 0 {
		sb.WriteString("Research stopped because:\n")
		for _, r := range state.StopReason {
			fmt.Fprintf(&sb, "- %s\n", r)
		}
		sb.WriteString("\n")
	}
	if state.SourceExhausted || len(state.SourceResults) == 0 {
		sb.WriteString("### What was not found\n\n")
		if len(state.SourceResults) == 0 {
			fmt.Fprintf(&sb, "No sources yielded results for %q. ", state.Query)
			sb.WriteString("The configured providers were all queried and returned nothing; the question may be too niche for them, or the terms may need rephrasing.\n")
		} else {
			sb.WriteString("Later cycles found no new sources, so coverage beyond the material above could not be established.\n")
		}
	}
	if missing := uncoveredCategories(state); len(missing) > 0 {
		fmt.Fprintf(&sb, "\nPlanned source categories that yielded nothing: %s.\n", strings.Join(missing, ", "))
	}
	return sb.String()
}

func uncoveredCategories(state *types.ResearchState) []string {
	queried := make(map[string]bool, len(state.QueriedCategories))
	for _, c := range state.QueriedCategories {
		queried[c] = true
	}
	var missing []string
	for _, c := range state.PlannedCategories {
		if !queried[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

func factsByVerified(facts []types.Fact, verified bool) []types.Fact {
	var out []types.Fact
	for _, f := range facts {
		if f.Verified == verified {
			out = append(out, f)
		}
	}
	return out
}
