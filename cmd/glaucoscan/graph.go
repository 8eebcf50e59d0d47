package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/glaucoscan/internal/presentation/graph"
	"github.com/aretw0/glaucoscan/pkg/domain"
	"github.com/aretw0/glaucoscan/pkg/ports"
)

var graphCmd = &cobra.Command{
	Use:   "graph [session-id]",
	Short: "Export the wizard flow visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the wizard phases.
With a session ID, the phases that session visited are highlighted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		hideReset, _ := cmd.Flags().GetBool("hide-reset")

		var overlay *graph.GraphOverlay
		if len(args) == 1 {
			var state *domain.State
			loadErr := withStore(cmd, func(store ports.StateStore) error {
				var err error
				state, err = store.Load(cmd.Context(), args[0])
				return err
			})
			if loadErr != nil {
				return fmt.Errorf("error loading session '%s': %w", args[0], loadErr)
			}
			overlay = graph.OverlayFor(state)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(graph.Options{
			Delay:     cfg.AnalysisDelay,
			HideReset: hideReset,
		}, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("hide-reset", false, "Leave out the reset edges")
}
