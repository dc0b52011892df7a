package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"deepscout/internal/config"
	"deepscout/internal/logging"
)

var (
	// Global flags
	workspace  string
	configPath string
	debugMode  bool

	cfg *config.Config
)

const version = "0.3.0"

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "deepscout",
	Short: "deepscout - multi-source deep research engine",
	Long: `deepscout orchestrates multi-source research sessions: it plans queries,
collects from academic/web/news providers behind per-provider rate limits and
circuit breakers, extracts entities and facts, and stops when additional
searching stops yielding new information.

Model calls are routed by privacy mode: local_only keeps every byte on the
local Ollama tier, cloud_allowed may escalate hard tasks to Gemini.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(workspace, configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if debugMode {
			cfg.Logging.DebugMode = true
			cfg.Logging.Level = "debug"
		}
		return logging.Initialize(workspace, logging.Config{
			DebugMode:  cfg.Logging.DebugMode,
			Level:      cfg.Logging.Level,
			Categories: cfg.Logging.Categories,
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the deepscout version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("deepscout %s\n", version)
	},
}

func init() {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", wd, "workspace directory")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default <workspace>/.deepscout/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(researchCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(recommendCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
