package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"activityplanner/internal/channel"
	"activityplanner/internal/domain"
)

func serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tools over REST (/tools/{name}) and JSON-RPC (/mcp)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var metricsHandler http.Handler
			if cfg.Metrics.Enabled {
				metricsHandler = a.metrics.Handler()
			}
			srv := channel.NewHTTPServer(channel.HTTPConfig{
				Host:         cfg.Server.Host,
				Port:         cfg.Server.Port,
				ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
				WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
				MaxBodyBytes: cfg.Server.MaxBodyBytes,
				Dispatcher:   channel.NewDispatcher(a.invoker, a.metrics),
				Metrics:      metricsHandler,
				MetricsPath:  cfg.Metrics.Path,
				Logger:       logger,
			})
			return runChannel(ctx, srv)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "override server.port")
	return cmd
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the tools over the MCP stdio transport",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			stdio := channel.NewMCPStdio(channel.MCPStdioConfig{
				Dispatcher: channel.NewDispatcher(a.invoker, a.metrics),
				Logger:     logger,
			})
			return runChannel(ctx, stdio)
		},
	}
}

// runChannel blocks until ch stops or ctx is cancelled, then stops it
// within a bounded time.
func runChannel(ctx context.Context, ch domain.Channel) error {
	errCh := make(chan error, 1)
	go func() { errCh <- ch.Start(ctx) }()

	select {
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			return fmt.Errorf("%s: %w", ch.Name(), err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "channel", ch.Name())
	const shutdownTimeout = 10 * time.Second
	select {
	case <-errCh:
		logger.Info("shutdown complete")
		return nil
	case <-time.After(shutdownTimeout):
		logger.Warn("shutdown timed out, forcing exit")
		return ch.Stop()
	}
}
