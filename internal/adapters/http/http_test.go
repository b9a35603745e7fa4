package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loggate/loggate/internal/adapters/http/handlers"
	"github.com/loggate/loggate/internal/app"
	"github.com/loggate/loggate/internal/instrument"
	"github.com/loggate/loggate/internal/platform/config"
	"github.com/loggate/loggate/internal/platform/logging"
	"github.com/loggate/loggate/internal/ports"
	"github.com/loggate/loggate/internal/storage/notes"
	"github.com/loggate/loggate/internal/storage/querylog"

	_ "modernc.org/sqlite"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) (*gin.Engine, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(logging.NewContextHandler(slog.NewJSONHandler(&buf, nil)))

	db, err := querylog.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := notes.NewRepository(context.Background(), db)
	require.NoError(t, err)

	reg := ports.NewHealthRegistry()
	require.NoError(t, reg.Register(repo))

	engine := gin.New()
	SetupRouter(engine, RouterConfig{
		Logger:       logger,
		Instrumentor: instrument.NewInstrumentor(logger, instrument.Options{CountQueries: true}),
		AuthConfig: &config.AuthConfig{
			Enabled:        true,
			SubjectHeader:  "X-User-ID",
			UsernameHeader: "X-User-Name",
		},
		AppConfig:     &config.AppConfig{Name: "loggate", Version: "test", Environment: "test"},
		HealthHandler: handlers.NewHealthHandler(reg, handlers.NewBuildInfo("test", "", "")),
		NoteHandler:   handlers.NewNoteHandler(app.NewNoteService(repo, logger)),
		ReportHandler: handlers.NewReportHandler(app.NewReportService(repo, logger)),
		Timeout:       5 * time.Second,
	})
	return engine, &buf
}

func TestRouter_NoteLifecycleWithInstrumentation(t *testing.T) {
	engine, buf := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes", strings.NewReader(`{"title":"wired"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-e2e")
	req.Header.Set("X-User-ID", "7")
	req.Header.Set("X-User-Name", "kim")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "req-e2e", w.Header().Get("X-Request-ID"))

	logs := buf.String()
	assert.Contains(t, logs, "request started")
	assert.Contains(t, logs, "request finished")
	assert.Contains(t, logs, "req-e2e")
	assert.Contains(t, logs, "[kim (ID:7)]")
	assert.Contains(t, logs, "SQL QUERIES EXECUTED")
}

func TestRouter_HealthEndpointsQuiet(t *testing.T) {
	engine, buf := newTestRouter(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/-/ready", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, buf.String(), "request started")
}

func TestRouter_StreamingReport(t *testing.T) {
	engine, buf := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes", strings.NewReader(`{"title":"for report"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/reports/notes", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "for report")
	assert.Contains(t, w.Body.String(), "TOTAL: 1 note(s)")
	assert.Contains(t, buf.String(), "streaming started")
	assert.Contains(t, buf.String(), "streaming finished")
}

func TestRouter_PanicReturnsEnvelope(t *testing.T) {
	engine, buf := newTestRouter(t)
	engine.GET("/api/v1/explode", func(c *gin.Context) { panic("test blast") })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/explode", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
	assert.Contains(t, buf.String(), "panic recovered")
}

func TestRouter_ContextBindingsInLogLines(t *testing.T) {
	engine, buf := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notes", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.99")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var sawContext bool
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &entry))
		if merged, ok := entry["context"].(map[string]any); ok {
			sawContext = true
			assert.Equal(t, "203.0.113.99", merged["ip_address"])
			assert.NotEmpty(t, merged["request_id"])
		}
	}
	assert.True(t, sawContext, "no log line carried a context field: %s", buf.String())
}

func TestServer_StartAndShutdown(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	srv := New(&config.ServerConfig{
		Port:            0,
		Host:            "127.0.0.1",
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		IdleTimeout:     time.Second,
		ShutdownTimeout: time.Second,
		MaxRequestSize:  config.DefaultMaxRequestSize,
	}, logger)

	assert.NotNil(t, srv.Engine())
	assert.Equal(t, "127.0.0.1:0", srv.Addr())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}
