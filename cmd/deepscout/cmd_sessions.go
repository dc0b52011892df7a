package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"deepscout/internal/memory"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage checkpointed research sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List checkpointed sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := memory.New(cfg.Memory.DatabasePath)
		if err != nil {
			return err
		}
		defer store.Close()

		sessions, err := store.ListSessions()
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions.")
			return nil
		}
		for _, s := range sessions {
			fmt.Printf("%s  %-14s %s  %q\n",
				s.SessionID, s.Phase, s.UpdatedAt.Format("2006-01-02 15:04"), s.Query)
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete [session-id]",
	Short: "Delete a session's checkpoint and documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := memory.New(cfg.Memory.DatabasePath)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.DeleteSession(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted session %s\n", args[0])
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}
