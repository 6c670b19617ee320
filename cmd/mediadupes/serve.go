package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ivoronin/mediadupes/internal/config"
	"github.com/ivoronin/mediadupes/internal/web"
)

const shutdownTimeout = 10 * time.Second

// serveOptions holds CLI flags for the serve command.
type serveOptions struct {
	configFile string
	listen     string
}

// newServeCmd creates the serve subcommand.
func newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the duplicate finder as a web application",
		Long: `Starts an HTTP server with a scan form. Each POST /scan request runs
one independent, read-only scan on the request's context. Also exposes
/healthz and /metrics (Prometheus).`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "Path to YAML config file")
	cmd.Flags().StringVarP(&opts.listen, "listen", "l", "", "Bind address (host:port)")

	return cmd
}

// runServe starts the server and blocks until SIGINT/SIGTERM, then drains
// in-flight requests before returning.
func runServe(opts *serveOptions) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return err
	}
	if opts.listen != "" {
		cfg.Listen = opts.listen
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	server, err := web.New(cfg, log)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Listen))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
