// Package main is the entry point for the loggate service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/loggate/loggate/internal/adapters/http"
	"github.com/loggate/loggate/internal/adapters/http/handlers"
	"github.com/loggate/loggate/internal/app"
	"github.com/loggate/loggate/internal/instrument"
	"github.com/loggate/loggate/internal/platform/config"
	"github.com/loggate/loggate/internal/platform/logging"
	"github.com/loggate/loggate/internal/platform/telemetry"
	"github.com/loggate/loggate/internal/ports"
	"github.com/loggate/loggate/internal/storage/notes"
	"github.com/loggate/loggate/internal/storage/querylog"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the service.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// 1. Determine profile from environment
	profile := os.Getenv("LOGGATE_APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	// 2. Load and validate configuration (fail fast)
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 3. Initialize logging: console sink plus the optional template-formatted
	// rolling file sink, both behind the context-merge handler
	logger := logging.New(logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			Format:     cfg.Log.File.Format,
			Template:   cfg.Log.File.Template,
			TimeLayout: cfg.Log.File.TimeLayout,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	slog.SetDefault(logger)
	logging.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
	)

	// 4. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(ctx); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	// 5. Open the note store
	db, err := querylog.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	repo, err := notes.NewRepository(ctx, db)
	if err != nil {
		return fmt.Errorf("initializing note store: %w", err)
	}

	// 6. Create health registry and register the store
	healthRegistry := ports.NewHealthRegistry()
	if err := healthRegistry.Register(repo); err != nil {
		return fmt.Errorf("registering store health check: %w", err)
	}

	// 7. Create application services
	noteService := app.NewNoteService(repo, logger)
	reportService := app.NewReportService(repo, logger)

	// 8. Create the request instrumentor
	instrumentor := instrument.NewInstrumentor(logger, instrument.Options{
		RequestIDHeader: cfg.Instrument.RequestIDHeader,
		CountQueries:    cfg.Instrument.CountQueries,
	})

	// 9. Create handlers
	buildInfo := handlers.NewBuildInfo(Version, Commit, BuildTime)
	healthHandler := handlers.NewHealthHandler(healthRegistry, buildInfo)
	noteHandler := handlers.NewNoteHandler(noteService)
	reportHandler := handlers.NewReportHandler(reportService)

	// 10. Create HTTP server and router
	server := http.New(&cfg.Server, logger)
	http.SetupRouter(server.Engine(), http.RouterConfig{
		Logger:        logger,
		Instrumentor:  instrumentor,
		AuthConfig:    &cfg.Auth,
		AppConfig:     &cfg.App,
		HealthHandler: healthHandler,
		NoteHandler:   noteHandler,
		ReportHandler: reportHandler,
		Timeout:       http.DefaultRequestTimeout,
	})

	// 11. Run the server and the log directory auditor together
	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(runCtx)

	serverErr := server.Start()
	group.Go(func() error {
		select {
		case err, ok := <-serverErr:
			if ok && err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-groupCtx.Done():
			return nil
		}
	})

	if cfg.Log.Audit.Enabled {
		auditor := logging.NewAuditor(logger, cfg.Log.Audit.Dir,
			cfg.Log.Audit.LimitMB, cfg.Log.Audit.Interval)
		group.Go(func() error {
			return auditor.Run(groupCtx)
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		return shutdown(logger, server, cfg.Server.ShutdownTimeout)
	})

	return group.Wait()
}

// shutdown drains the HTTP server within the configured timeout.
func shutdown(logger *slog.Logger, server *http.Server, timeout time.Duration) error {
	logger.Info("initiating graceful shutdown", slog.Duration("timeout", timeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")

	return nil
}
