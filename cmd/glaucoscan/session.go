package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aretw0/glaucoscan/internal/cli"
	"github.com/aretw0/glaucoscan/internal/runtime"
	"github.com/aretw0/glaucoscan/pkg/ports"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persisted sessions",
	Long:  `List, inspect, and remove sessions held by the configured store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(store ports.StateStore) error {
			sessions, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("error listing sessions: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions found.")
				return nil
			}

			fmt.Fprintln(out, "Sessions:")
			for _, id := range sessions {
				phase := "?"
				if state, err := store.Load(cmd.Context(), id); err == nil {
					phase = string(state.Phase())
				}
				fmt.Fprintf(out, "- %s (%s)\n", id, phase)
			}
			return nil
		})
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Inspect the state of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]
		return withStore(cmd, func(store ports.StateStore) error {
			state, err := store.Load(cmd.Context(), sessionID)
			if err != nil {
				return fmt.Errorf("error loading session '%s': %w", sessionID, err)
			}
			if raw, _ := cmd.Flags().GetBool("raw"); raw {
				return writeJSON(cmd.OutOrStdout(), state)
			}
			return writeJSON(cmd.OutOrStdout(), runtime.NewController().Render(state))
		})
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if !all && len(args) == 0 {
			return fmt.Errorf("requires at least 1 session id, or --all")
		}

		return withStore(cmd, func(store ports.StateStore) error {
			ids := args
			if all {
				var err error
				if ids, err = store.List(cmd.Context()); err != nil {
					return fmt.Errorf("error listing sessions: %w", err)
				}
			}

			failed := 0
			for _, id := range ids {
				if err := store.Delete(cmd.Context(), id); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error removing '%s': %v\n", id, err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", id)
			}
			if failed > 0 {
				return fmt.Errorf("%d session(s) could not be removed", failed)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)

	sessionInspectCmd.Flags().Bool("raw", false, "Print the stored state instead of the rendered view")
	sessionRmCmd.Flags().Bool("all", false, "Remove every session")
}

func withStore(cmd *cobra.Command, fn func(ports.StateStore) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, _, closeFn, err := cli.OpenStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()
	return fn(store)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
