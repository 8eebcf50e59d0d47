package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/glaucoscan/internal/cli"
	"github.com/aretw0/glaucoscan/pkg/domain"
)

var scanCmd = &cobra.Command{
	Use:   "scan <image>",
	Short: "Screen one fundus image and print the report",
	Long: `Runs the whole wizard locally: uploads the image, starts the analysis,
waits for the analysis delay and prints the results.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cmd, cfg)
		plain, _ := cmd.Flags().GetBool("plain")
		quiet, _ := cmd.Flags().GetBool("quiet")

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()

		rt, err := cli.Build(sc, cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = rt.Close() }()

		out := cmd.OutOrStdout()
		fd := int(os.Stdout.Fd())
		styled := !plain && out == os.Stdout && term.IsTerminal(fd)
		width := 0
		if styled {
			if w, _, err := term.GetSize(fd); err == nil {
				width = w
			}
		}

		onStep := func(v domain.View) {
			if quiet || v.Phase == domain.PhaseComplete {
				return
			}
			cli.PrintSystemMessage(cmd.ErrOrStderr(), "Step %d: %s", v.Step, v.Label)
		}

		view, err := cli.RunScan(sc, rt.Engine, args[0], onStep)
		if err != nil {
			if sc.Signal() != nil {
				cli.PrintSystemMessage(cmd.ErrOrStderr(), "Interrupted.")
				return nil
			}
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(out, view)
		}
		return cli.PrintReport(out, view, styled, width)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().Bool("plain", false, "Print raw markdown even on a terminal")
	scanCmd.Flags().Bool("json", false, "Print the results view as JSON")
	scanCmd.Flags().BoolP("quiet", "q", false, "Do not report intermediate steps")
}
