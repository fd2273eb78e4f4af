package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/swmlgen/internal/api"
	"github.com/dgallion1/swmlgen/internal/pipeline"
	"github.com/dgallion1/swmlgen/internal/schema"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API with graceful shutdown on SIGINT or SIGTERM.

Settings come from the environment (PORT, SWMLGEN_API_KEY, SCHEMA_PATH,
WORKER_COUNT, MAX_QUEUE_SIZE, JOB_TTL, MAX_UPLOAD_BYTES, LOG_MODE, ...) or
the --config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), a)
		},
	}
}

func serve(parent context.Context, a *app) error {
	cfg, log := a.cfg, a.log
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	validator := schema.NewValidator(log)
	if cfg.SchemaPath != "" {
		// Fail fast on a broken schema; a missing one only disables validation.
		if err := validator.Check(schema.NewFileSource(cfg.SchemaPath)); err != nil {
			var sle *schema.SchemaLoadError
			if errors.As(err, &sle) {
				return err
			}
			log.Warn("schema not found, validation disabled", "schema", cfg.SchemaPath)
		}
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, validator, log.With("component", "pipeline"))
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, validator, log.With("component", "api"), cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
		case <-ctx.Done():
		}
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
	}()

	log.Info("starting swmlgen", "port", cfg.Port, "schema", cfg.SchemaPath, "workers", cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		cancel()
		<-done
		return err
	}
	<-done
	return nil
}
