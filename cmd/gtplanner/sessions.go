package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildSessionsCmd creates the "sessions" command group for inspecting
// persisted conversations outside of a live chat/serve run.
func buildSessionsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect persisted sessions",
	}
	cmd.AddCommand(
		buildSessionsSearchCmd(configPath),
		buildSessionsStatsCmd(configPath),
	)
	return cmd
}

func buildSessionsSearchCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "search [keyword]",
		Short: "Full-text search over indexed session content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			hits, err := a.mgr.Search(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(hits) == 0 {
				fmt.Fprintln(out, "No matches.")
				return nil
			}
			for _, hit := range hits {
				fmt.Fprintf(out, "session %s (message %s): %s\n", hit.SessionID, hit.MessageID, hit.Snippet)
			}
			return nil
		},
	}
}

func buildSessionsStatsCmd(configPath *string) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show a session's message/token/compression statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			session, err := a.mgr.LoadSession(ctx, sessionID)
			if err != nil {
				return err
			}
			stats, err := a.mgr.Statistics(ctx, session.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session:             %s\n", session.ID)
			fmt.Fprintf(out, "Title:               %s\n", session.Title)
			fmt.Fprintf(out, "Total messages:      %d\n", stats.TotalMessages)
			fmt.Fprintf(out, "Total tool calls:    %d\n", stats.TotalToolExecutions)
			fmt.Fprintf(out, "Compression version: %d\n", stats.CompressionVersion)
			fmt.Fprintf(out, "Compression ratio:   %.2f\n", stats.CompressionRatio)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "id", "", "session id or unambiguous prefix")
	return cmd
}
