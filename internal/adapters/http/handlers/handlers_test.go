package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loggate/loggate/internal/app"
	"github.com/loggate/loggate/internal/ports"
	"github.com/loggate/loggate/internal/storage/notes"
	"github.com/loggate/loggate/internal/storage/querylog"

	_ "modernc.org/sqlite"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newNoteEngine(t *testing.T) (*gin.Engine, *notes.Repository) {
	t.Helper()

	db, err := querylog.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := notes.NewRepository(context.Background(), db)
	require.NoError(t, err)

	engine := gin.New()
	api := engine.Group("/api/v1")
	NewNoteHandler(app.NewNoteService(repo, discardLogger())).RegisterNoteRoutes(api)
	NewReportHandler(app.NewReportService(repo, discardLogger())).RegisterReportRoutes(api)
	return engine, repo
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestNoteHandler_CreateAndGet(t *testing.T) {
	engine, _ := newNoteEngine(t)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/notes", `{"title":"groceries","body":"milk"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created NoteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotZero(t, created.ID)

	w = doJSON(t, engine, http.MethodGet, "/api/v1/notes/1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "groceries")
}

func TestNoteHandler_CreateValidation(t *testing.T) {
	engine, _ := newNoteEngine(t)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/notes", `{"title":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
	assert.Contains(t, w.Body.String(), "title")
}

func TestNoteHandler_CreateBadJSON(t *testing.T) {
	engine, _ := newNoteEngine(t)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/notes", `{"title": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "BAD_REQUEST")
}

func TestNoteHandler_GetMissing(t *testing.T) {
	engine, _ := newNoteEngine(t)

	w := doJSON(t, engine, http.MethodGet, "/api/v1/notes/404", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestNoteHandler_BadID(t *testing.T) {
	engine, _ := newNoteEngine(t)

	w := doJSON(t, engine, http.MethodGet, "/api/v1/notes/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNoteHandler_ListAndDelete(t *testing.T) {
	engine, _ := newNoteEngine(t)

	require.Equal(t, http.StatusCreated,
		doJSON(t, engine, http.MethodPost, "/api/v1/notes", `{"title":"one"}`).Code)
	require.Equal(t, http.StatusCreated,
		doJSON(t, engine, http.MethodPost, "/api/v1/notes", `{"title":"two"}`).Code)

	w := doJSON(t, engine, http.MethodGet, "/api/v1/notes", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "one")
	assert.Contains(t, w.Body.String(), "two")

	w = doJSON(t, engine, http.MethodDelete, "/api/v1/notes/1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, engine, http.MethodDelete, "/api/v1/notes/1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportHandler_StreamsFullReport(t *testing.T) {
	engine, _ := newNoteEngine(t)

	require.Equal(t, http.StatusCreated,
		doJSON(t, engine, http.MethodPost, "/api/v1/notes", `{"title":"alpha"}`).Code)
	require.Equal(t, http.StatusCreated,
		doJSON(t, engine, http.MethodPost, "/api/v1/notes", `{"title":"beta"}`).Code)

	w := doJSON(t, engine, http.MethodGet, "/api/v1/reports/notes", "")
	assert.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "NOTES REPORT\n"), body)
	assert.Contains(t, body, "alpha")
	assert.Contains(t, body, "beta")
	assert.Contains(t, body, "TOTAL: 2 note(s)")
}

func TestReportHandler_EmptyStore(t *testing.T) {
	engine, _ := newNoteEngine(t)

	w := doJSON(t, engine, http.MethodGet, "/api/v1/reports/notes", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "TOTAL: 0 note(s)")
}

// Health

type failingChecker struct{}

func (failingChecker) Name() string                    { return "broken" }
func (failingChecker) Check(ctx context.Context) error { return errors.New("down") }

func newHealthEngine(t *testing.T, reg ports.HealthRegistry) *gin.Engine {
	t.Helper()
	engine := gin.New()
	NewHealthHandler(reg, NewBuildInfo("1.2.3", "abc123", "2026-08-24")).RegisterHealthRoutesOnEngine(engine)
	return engine
}

func TestHealth_Liveness(t *testing.T) {
	engine := newHealthEngine(t, ports.NewHealthRegistry())

	w := doJSON(t, engine, http.MethodGet, "/-/live", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestHealth_ReadinessHealthy(t *testing.T) {
	engine := newHealthEngine(t, ports.NewHealthRegistry())

	w := doJSON(t, engine, http.MethodGet, "/-/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestHealth_ReadinessUnhealthy(t *testing.T) {
	reg := ports.NewHealthRegistry()
	require.NoError(t, reg.Register(failingChecker{}))
	engine := newHealthEngine(t, reg)

	w := doJSON(t, engine, http.MethodGet, "/-/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "down")
}

func TestHealth_BuildInfo(t *testing.T) {
	engine := newHealthEngine(t, ports.NewHealthRegistry())

	w := doJSON(t, engine, http.MethodGet, "/-/build", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "1.2.3")
	assert.Contains(t, w.Body.String(), "abc123")
}

func TestHealth_Metrics(t *testing.T) {
	engine := newHealthEngine(t, ports.NewHealthRegistry())

	w := doJSON(t, engine, http.MethodGet, "/-/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
