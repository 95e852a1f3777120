package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/aretw0/topical/internal/cli"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the Topical engine in server mode, exposing a JSON API, SSE and
websocket streams over HTTP, plus prometheus metrics. When nats.url is
configured, events published on NATS are served too.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, cfg, logger, err := openStack(cmd, cli.WithMetrics())
		if err != nil {
			return err
		}
		defer stack.Close()

		if cmd.Flags().Changed("addr") {
			cfg.HTTP.Addr, _ = cmd.Flags().GetString("addr")
		}
		if cmd.Flags().Changed("nats") {
			cfg.NATS.URL, _ = cmd.Flags().GetString("nats")
		}

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		return cli.Serve(sigCtx, stack, cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on")
	serveCmd.Flags().String("nats", "", "NATS server URL (enables the NATS transport)")
}
