package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/den-kezlia/torrent/internal/importer"
	"github.com/den-kezlia/torrent/internal/server"
	"github.com/den-kezlia/torrent/internal/tracing"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the import trigger, segment export and metrics over HTTP",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().String("default-boundary", importer.DefaultBoundary, "Boundary imported when a request names none")
	serveCmd.Flags().Int("workers", 1, "Number of streets reconciled concurrently per import")
	serveCmd.Flags().Bool("no-prune", false, "Keep per-way unnamed streets left by earlier imports")
	serveCmd.Flags().StringSlice("allowed-origins", []string{"*"}, "CORS allowed origins")
	serveCmd.Flags().Duration("shutdown-timeout", 10*time.Second, "Grace period for in-flight requests on shutdown")

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("serve.addr", "addr")
	mustBind("serve.default_boundary", "default-boundary")
	mustBind("serve.workers", "workers")
	mustBind("serve.no_prune", "no-prune")
	mustBind("serve.allowed_origins", "allowed-origins")
	mustBind("serve.shutdown_timeout", "shutdown-timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	v := viper.GetViper()
	addr := v.GetString("serve.addr")
	defaultBoundary := v.GetString("serve.default_boundary")
	shutdownTimeout := v.GetDuration("serve.shutdown_timeout")

	opts := importer.DefaultOptions()
	opts.Workers = v.GetInt("serve.workers")
	opts.PruneUnnamed = !v.GetBool("serve.no_prune")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, v.GetString("tracing.endpoint"), version)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	a, err := newApp(ctx, v, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	importHandler, err := server.NewImportHandler(a.importer, server.ImportHandlerConfig{
		Options:         opts,
		DefaultBoundary: defaultBoundary,
	}, logger)
	if err != nil {
		return err
	}

	router := server.NewRouter(server.RouterConfig{
		Import:         importHandler,
		Segments:       server.NewSegmentsHandler(a.store, logger),
		Gatherer:       a.registry,
		Logger:         logger,
		AllowedOrigins: v.GetStringSlice("serve.allowed_origins"),
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.Info("street server listening",
		"addr", addr,
		"default_boundary", defaultBoundary,
		"workers", opts.Workers,
		"prune_unnamed", opts.PruneUnnamed,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
