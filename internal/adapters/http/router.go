package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loggate/loggate/internal/adapters/http/handlers"
	"github.com/loggate/loggate/internal/adapters/http/middleware"
	"github.com/loggate/loggate/internal/instrument"
	"github.com/loggate/loggate/internal/platform/config"
	"github.com/loggate/loggate/internal/platform/telemetry"
)

// DefaultRequestTimeout is the default timeout for API requests.
const DefaultRequestTimeout = 30 * time.Second

// ReportStreamPath is the streaming report route; it is exempt from the
// request timeout since a large report legitimately outlives it.
const ReportStreamPath = "/api/v1/reports/notes"

// RouterConfig contains configuration for setting up the router.
type RouterConfig struct {
	// Logger is the structured logger for request logging.
	Logger *slog.Logger

	// Instrumentor runs the request lifecycle instrumentation.
	Instrumentor *instrument.Instrumentor

	// AuthConfig names the trusted identity headers.
	AuthConfig *config.AuthConfig

	// AppConfig contains application configuration.
	AppConfig *config.AppConfig

	// HealthHandler handles health check endpoints.
	HealthHandler *handlers.HealthHandler

	// NoteHandler handles the note CRUD endpoints.
	NoteHandler *handlers.NoteHandler

	// ReportHandler handles the streaming report endpoint.
	ReportHandler *handlers.ReportHandler

	// Timeout is the default request timeout.
	Timeout time.Duration
}

// SetupRouter configures all routes and middleware on the Gin engine.
// Middleware is applied in the following order (first to last):
//  1. Recovery - catch panics first
//  2. Gateway request ID - transport-metadata id fallback
//  3. OpenTelemetry tracing - spans before instrumentation so the trace id
//     can be bound into the log context
//  4. Telemetry metrics + trace-id binding
//  5. Instrumentation - started/finished lines, log-context bindings
//  6. Principal - trusted identity headers
//  7. Timeout - request deadline, streaming route exempt
//
// Route groups:
//   - /-/ (internal): health endpoints, skipped by instrumentation
//   - /api/v1/ (public API): notes and reports
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	engine.Use(
		middleware.Recovery(cfg.Logger),
		middleware.GatewayRequestID(),
		telemetry.TracingMiddleware(cfg.AppConfig.Name),
		telemetry.Middleware(cfg.AppConfig.Name),
		middleware.Instrumentation(cfg.Instrumentor),
		middleware.Principal(cfg.AuthConfig),
	)

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterHealthRoutesOnEngine(engine)
	}

	apiV1 := engine.Group("/api/v1")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	apiV1.Use(middleware.Timeout(timeout, ReportStreamPath))

	if cfg.NoteHandler != nil {
		cfg.NoteHandler.RegisterNoteRoutes(apiV1)
	}
	if cfg.ReportHandler != nil {
		cfg.ReportHandler.RegisterReportRoutes(apiV1)
	}
}
