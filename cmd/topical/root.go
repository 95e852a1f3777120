package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/topical/internal/cli"
	"github.com/aretw0/topical/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "topical",
	Short: "Topical runs hierarchical, persistable conversations",
	Long: `Topical drives multi-turn dialogs built from nested topics.
Conversations are persisted between turns and can be served over HTTP,
websockets, NATS or MCP.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("dir", "", "Directory holding .topical state (file and bolt stores)")
	rootCmd.PersistentFlags().String("store", "", "Store backend: memory, file, redis or bolt")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

// loadConfig reads --config and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("dir") {
		dir, _ := flags.GetString("dir")
		cfg.Store.Dir = filepath.Join(dir, ".topical", "conversations")
		cfg.Store.Bolt.Path = filepath.Join(dir, ".topical", "topical.db")
	}
	if flags.Changed("store") {
		cfg.Store.Backend, _ = flags.GetString("store")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	return cfg, cfg.Validate()
}

// openStack loads the configuration and builds the engine for a command.
func openStack(cmd *cobra.Command, opts ...cli.StackOption) (*cli.Stack, *config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	debug, _ := cmd.Flags().GetBool("debug")
	logger, err := cli.NewLogger(cfg.LogLevel, debug)
	if err != nil {
		return nil, nil, nil, err
	}
	stack, err := cli.NewStack(cfg, logger, opts...)
	if err != nil {
		return nil, nil, nil, err
	}
	return stack, cfg, logger, nil
}
