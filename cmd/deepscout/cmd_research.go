package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"deepscout/internal/types"
)

var (
	privacyFlag string
	approveFlag bool
	outputFlag  string
	resumeFlag  string
)

// researchCmd runs a full research session.
var researchCmd = &cobra.Command{
	Use:   "research [query]",
	Short: "Run a research session over the configured providers",
	Long: `Runs the full research pipeline: clarify, plan, collect, process,
analyze, evaluate, repeating collection cycles until the findings saturate,
the sources are exhausted, or the cycle cap is hit, then synthesizes a
sourced report.

Interrupt with Ctrl-C to stop early; a report is still produced from
whatever was collected, and the session remains resumable.`,
	Args: cobra.ArbitraryArgs,
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().StringVar(&privacyFlag, "privacy", "", "privacy mode: local_only or cloud_allowed (default from config)")
	researchCmd.Flags().BoolVar(&approveFlag, "approve-plan", false, "require interactive approval of the research plan")
	researchCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "write the report to a file instead of stdout")
	researchCmd.Flags().StringVar(&resumeFlag, "resume", "", "resume a checkpointed session by ID")
}

func runResearch(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" && resumeFlag == "" {
		return fmt.Errorf("provide a research query or --resume <session-id>")
	}

	mode := types.PrivacyMode(cfg.LLM.PrivacyMode)
	if privacyFlag != "" {
		mode = types.PrivacyMode(privacyFlag)
	}
	if mode != types.PrivacyLocalOnly && mode != types.PrivacyCloudAllowed {
		return fmt.Errorf("invalid privacy mode %q", mode)
	}

	if approveFlag {
		cfg.Research.AutoApprove = false
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	eng, err := buildEngine(ctx, cfg, mode)
	if err != nil {
		return err
	}
	defer eng.Close()

	var state *types.ResearchState
	if resumeFlag != "" {
		state, err = eng.orchestrator.ResumeSession(resumeFlag)
		if err != nil {
			return err
		}
		fmt.Printf("Resuming session %s at phase %s (cycle %d)\n", state.SessionID, state.Phase, state.Cycle)
	} else {
		state = eng.orchestrator.StartSession(query)
		fmt.Printf("Session %s started (privacy=%s)\n", state.SessionID, mode)
	}

	// First Ctrl-C stops gracefully and synthesizes; second aborts.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nstopping: synthesizing report from collected data...")
		eng.orchestrator.Stop()
		<-sigCh
		cancel()
	}()

	go printProgress(eng)
	if !cfg.Research.AutoApprove {
		go promptApproval(eng)
	}

	if err := eng.orchestrator.Run(ctx); err != nil {
		return err
	}

	report := eng.orchestrator.GetReport()
	if outputFlag != "" {
		if err := os.WriteFile(outputFlag, []byte(report), 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Printf("Report written to %s\n", outputFlag)
		return nil
	}
	fmt.Println()
	fmt.Println(report)
	return nil
}

// promptApproval waits for the plan to be ready, shows it, and gates on a
// keypress. Anything other than an explicit "n" approves.
func promptApproval(eng *engine) {
	for {
		time.Sleep(100 * time.Millisecond)
		p := eng.orchestrator.GetProgress()
		if p.Phase == types.PhaseDone {
			return
		}
		if p.Phase != types.PhaseAwaitApproval {
			continue
		}
		fmt.Fprint(os.Stderr, "Approve research plan and begin collection? [Y/n] ")
		var answer string
		fmt.Scanln(&answer)
		if strings.EqualFold(strings.TrimSpace(answer), "n") {
			fmt.Fprintln(os.Stderr, "stopping before collection")
			eng.orchestrator.Stop()
		}
		eng.orchestrator.Approve()
		return
	}
}

// printProgress renders pipeline progress lines as they arrive.
func printProgress(eng *engine) {
	for {
		select {
		case p, ok := <-eng.progress:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "[%s] cycle=%d sources=%d entities=%d facts=%d\n",
				p.Phase, p.Cycle, p.SourcesQueried, p.EntitiesFound, p.FactsExtracted)
		case ev, ok := <-eng.events:
			if !ok {
				return
			}
			if ev.Type == types.EventError || ev.Type == types.EventModelInfo {
				fmt.Fprintf(os.Stderr, "  %s\n", ev.Message)
			}
		}
	}
}
