package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/topical/internal/cli"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persistent conversations",
	Long:  `List, inspect, and remove conversations held by the configured store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all stored conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, _, _, err := openStack(cmd)
		if err != nil {
			return err
		}
		defer stack.Close()
		return cli.ListConversations(cmd.Context(), stack.Engine, cmd.OutOrStdout())
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <conversation-id>",
	Short: "Inspect the instance store of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, _, _, err := openStack(cmd)
		if err != nil {
			return err
		}
		defer stack.Close()
		if asGraph, _ := cmd.Flags().GetBool("graph"); asGraph {
			return cli.GraphConversation(cmd.Context(), stack.Engine, args[0], cmd.OutOrStdout())
		}
		return cli.InspectConversation(cmd.Context(), stack.Engine, args[0], cmd.OutOrStdout())
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <conversation-id>...",
	Short: "Remove one or more conversations",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, _, _, err := openStack(cmd)
		if err != nil {
			return err
		}
		defer stack.Close()
		return cli.RemoveConversations(cmd.Context(), stack.Engine, args, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)

	sessionInspectCmd.Flags().Bool("graph", false, "Print the instance tree as a Mermaid flowchart")
}
