package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tndd/datadoggo-v3-rss/internal/api"
)

const shutdownGrace = 10 * time.Second

// newServeCmd creates the 'serve' subcommand hosting the HTTP API.
func newServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Starts the HTTP server exposing the article read API and the
pipeline trigger endpoints. Shuts down gracefully on SIGINT or SIGTERM.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeCommand(cmd, host, port)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "bind address (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "bind port (overrides config)")
	return cmd
}

func runServeCommand(cmd *cobra.Command, host string, port int) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	serverCfg := appInstance.Config.Server
	if host != "" {
		serverCfg.Host = host
	}
	if port != 0 {
		serverCfg.Port = port
	}

	handler := api.NewServer(
		appInstance.Ingestor,
		appInstance.Fetcher,
		appInstance.Pager,
		appInstance.Notifier,
		appInstance.Config.Feeds.LinksPath,
		appInstance.Logger,
	).Handler()

	srv := &http.Server{
		Addr:              serverCfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		appInstance.Logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	appInstance.Logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
