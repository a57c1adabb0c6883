package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/golovatskygroup/compliance-mcp/internal/server"
)

func newServeCommand() *cobra.Command {
	var (
		host      string
		port      int
		transport string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Long:  "Run the MCP server over SSE (HTTP) or stdio.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			if cfg.DevelopmentMode {
				a.logger.Info("Running in development mode with mock data")
			}

			srv := server.New(a.dispatcher, a.logger)
			switch transport {
			case "stdio":
				return srv.ServeStdio(cmd.Context(), os.Stdin, os.Stdout)
			case "sse":
				return serveHTTP(cmd.Context(), a, srv)
			default:
				return fmt.Errorf("unknown transport %q (want sse or stdio)", transport)
			}
		},
	}
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "Host to bind to")
	cmd.Flags().IntVar(&port, "port", 8080, "Port to listen on")
	cmd.Flags().Bool("dev", false, "Run in development mode with mock data")
	cmd.Flags().StringVar(&transport, "transport", "sse", "Transport: sse or stdio")
	return cmd
}

func serveHTTP(ctx context.Context, a *app, srv *server.Server) error {
	httpServer := &http.Server{
		Addr: a.cfg.Addr(),
		Handler: srv.Router(server.HTTPOptions{
			Gatherer:        a.registry,
			DevelopmentMode: a.cfg.DevelopmentMode,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
