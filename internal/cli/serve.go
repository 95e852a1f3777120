package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/topical/internal/config"
	httpAdapter "github.com/aretw0/topical/pkg/adapters/http"
	"github.com/aretw0/topical/pkg/adapters/mcp"
	natsAdapter "github.com/aretw0/topical/pkg/adapters/nats"
)

// ShutdownTimeout bounds the graceful shutdown of the servers.
const ShutdownTimeout = 5 * time.Second

// NewHTTPServer builds the HTTP server for stack on cfg.HTTP.Addr.
func NewHTTPServer(stack *Stack, cfg *config.Config, logger *slog.Logger) *http.Server {
	opts := []httpAdapter.Option{httpAdapter.WithLogger(logger)}
	if cfg.HTTP.Metrics && stack.Metrics != nil {
		opts = append(opts, httpAdapter.WithMetricsHandler(stack.Metrics.Handler()))
	}
	return &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpAdapter.NewHandler(stack.Engine, opts...),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Serve runs the HTTP API, and the NATS transport when configured, until ctx is done.
func Serve(ctx context.Context, stack *Stack, cfg *config.Config, logger *slog.Logger) error {
	if cfg.NATS.URL != "" {
		conn, err := natsAdapter.Connect(cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer conn.Close()

		adapter := natsAdapter.New(stack.Engine, conn,
			natsAdapter.WithPrefix(cfg.NATS.Prefix),
			natsAdapter.WithQueue(cfg.NATS.Queue),
			natsAdapter.WithLogger(logger),
		)
		if err := adapter.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := adapter.Stop(); err != nil {
				logger.Warn("NATS drain failed", "err", err)
			}
		}()
	}

	srv := NewHTTPServer(stack, cfg, logger)
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting Topical Server", "address", srv.Addr, "store", cfg.Store.Backend)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		logger.Info("Shutting down Topical Server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown did not complete in %v: %w", ShutdownTimeout, err)
		}
		return nil
	}
}

// ServeMCP runs the MCP server over cfg.MCP.Transport.
func ServeMCP(ctx context.Context, stack *Stack, cfg *config.Config, logger *slog.Logger) error {
	srv := mcp.NewServer(stack.Engine, mcp.WithLogger(logger))
	switch cfg.MCP.Transport {
	case "stdio":
		logger.Info("Starting Topical MCP Server (Stdio)")
		return srv.ServeStdio()
	case "sse":
		err := srv.ServeSSE(ctx, cfg.MCP.Port)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
	return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", cfg.MCP.Transport)
}
