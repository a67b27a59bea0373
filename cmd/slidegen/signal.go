package main

import (
	"fmt"

	"github.com/phrazzld/slidegen/internal/cancel"
	"github.com/spf13/cobra"
)

func newCancelCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Ask every running generation sharing the cancel marker to stop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sig := cancel.New(g.cfg.LLM.CancelMarker)
			if err := sig.RequestCancel(); err != nil {
				return fmt.Errorf("failed to request cancellation: %w", err)
			}
			g.logger.Info("cancellation requested", "marker", g.cfg.LLM.CancelMarker)
			fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested (%s)\n", g.cfg.LLM.CancelMarker)
			return nil
		},
	}
}

func newClearCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the cancel marker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sig := cancel.New(g.cfg.LLM.CancelMarker)
			if err := sig.Clear(); err != nil {
				return fmt.Errorf("failed to clear cancellation: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cancellation cleared")
			return nil
		},
	}
}
