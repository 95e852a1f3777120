package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/topical"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of topical",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "topical version %s\n", topical.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
