package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/glaucoscan"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of glaucoscan",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "glaucoscan version %s\n", glaucoscan.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
