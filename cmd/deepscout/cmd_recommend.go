package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"deepscout/internal/router"
)

// recommendCmd previews the privacy-mode recommendation for a query without
// running anything. The recommendation is advisory; an explicit mode on the
// research command always wins.
var recommendCmd = &cobra.Command{
	Use:   "recommend-mode [query]",
	Short: "Recommend a privacy mode for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		rt, err := router.New(router.DefaultPreferences(), nil)
		if err != nil {
			return err
		}
		mode, why := rt.RecommendPrivacyMode(query)
		fmt.Printf("Recommended mode: %s\n", mode)
		fmt.Printf("Reason: %s\n", why)
		return nil
	},
}
