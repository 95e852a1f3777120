package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/aretw0/topical/internal/cli"
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the demo profile dialog",
	Long: `Starts an interactive conversation in the terminal. The conversation is
saved after every turn, so running chat again with the same --session resumes it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, _, logger, err := openStack(cmd)
		if err != nil {
			return err
		}
		defer stack.Close()

		session, _ := cmd.Flags().GetString("session")
		jsonMode, _ := cmd.Flags().GetBool("json")
		fresh, _ := cmd.Flags().GetBool("fresh")
		quiet, _ := cmd.Flags().GetBool("quiet")

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		return cli.RunChat(sigCtx, stack, logger, cli.ChatOptions{
			ConversationID: session,
			JSON:           jsonMode,
			Fresh:          fresh,
			Quiet:          quiet,
			In:             cmd.InOrStdin(),
			Out:            cmd.OutOrStdout(),
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("session", "s", "default", "Conversation id to create or resume")
	chatCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")
	chatCmd.Flags().Bool("fresh", false, "Discard the stored conversation before starting")
	chatCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner and status lines")

	// Make 'chat' the default if no command is provided
	rootCmd.RunE = chatCmd.RunE
	rootCmd.Flags().AddFlagSet(chatCmd.Flags())
}
