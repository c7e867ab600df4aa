package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/ragdocs/internal/api/handlers"
	"github.com/cloo-solutions/ragdocs/internal/database"
	"github.com/cloo-solutions/ragdocs/internal/jobs"
	"github.com/cloo-solutions/ragdocs/internal/repository"
	"github.com/cloo-solutions/ragdocs/internal/server"
	"github.com/cloo-solutions/ragdocs/internal/service"
	"github.com/cloo-solutions/ragdocs/internal/telemetry"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the ragdocs API server and the background ingestion pipeline",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides RAGDOCS_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	startedAt := time.Now()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	flushTelemetry := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.SentryEnvironment,
		TracesSampleRate: cfg.SentryTracesSampleRate,
		Debug:            cfg.Debug,
	}, log)
	defer flushTelemetry()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Info().Msg("connected to database")

	if noMigrate, _ := cmd.Flags().GetBool("no-migrate"); !noMigrate {
		if err := database.Migrate(cfg.DatabaseURL, cfg.MigrateDir, database.Up, log); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	p, err := newPipeline(ctx, cfg, pool, log)
	if err != nil {
		return err
	}

	if _, err := p.ingestion.RecoverStale(ctx, startedAt); err != nil {
		return fmt.Errorf("failed to recover interrupted documents: %w", err)
	}

	go func() {
		if err := p.chunks.EnsureVectorIndex(context.WithoutCancel(ctx)); err != nil {
			log.Error().Err(err).Msg("vector index build failed, search falls back to exact scan")
			return
		}
		log.Info().Str("index", repository.VectorIndexName).Msg("vector index ready")
	}()

	sweeper := jobs.NewWorker("job-sweeper", p.tracker, cfg.JobSweepInterval, log)
	go sweeper.Start(ctx)

	version := cmd.Root().Version
	router := server.NewRouter(server.RouterConfig{
		Logger:              log,
		MaxBodyBytes:        cfg.MaxUploadBytes,
		HealthHandler:       handlers.NewHealthHandler(pool, version),
		DocumentHandler:     handlers.NewDocumentHandler(p.ingestion, p.documents),
		SearchHandler:       handlers.NewSearchHandler(service.NewSearchService(p.docs, p.chunks, p.embedder, cfg.EmbeddingDimension, log)),
		ConversationHandler: handlers.NewConversationHandler(service.NewConversationService(repository.NewConversationRepository(pool), log)),
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := p.ingestion.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("ingestion did not drain before timeout")
	}
	sweeper.Stop()

	log.Info().Msg("server exited")
	return nil
}
