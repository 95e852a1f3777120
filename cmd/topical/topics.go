package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/topical/internal/cli"
)

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List the registered topics",
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, _, _, err := openStack(cmd)
		if err != nil {
			return err
		}
		defer stack.Close()
		if asGraph, _ := cmd.Flags().GetBool("graph"); asGraph {
			cli.GraphTopics(stack.Engine.Registry(), cmd.OutOrStdout())
			return nil
		}
		cli.ListTopics(stack.Engine, cmd.OutOrStdout())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(topicsCmd)
	topicsCmd.Flags().Bool("graph", false, "Print completion handlers as a Mermaid flowchart")
}
