package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loggate/loggate/internal/adapters/http/dto"
	"github.com/loggate/loggate/internal/adapters/http/middleware"
	"github.com/loggate/loggate/internal/app"
	"github.com/loggate/loggate/internal/instrument"
	"github.com/loggate/loggate/internal/platform/logging"
)

// ReportHandler serves incremental note reports.
type ReportHandler struct {
	service *app.ReportService
}

// NewReportHandler creates a report handler.
func NewReportHandler(service *app.ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// Stream handles GET /api/v1/reports/notes. The body is written chunk by
// chunk with a flush after each one; the stream is wrapped so its start,
// end, and any mid-stream failure land in the logs. A failure after the
// first chunk can only be truncated, not turned into an error status.
func (h *ReportHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()

	stream, err := h.service.Stream(ctx)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	logger := logging.FromContext(ctx)
	wrapped := instrument.WrapStream(logger, stream, middleware.GetRequestID(c))

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Status(http.StatusOK)

	if err := instrument.Drain(ctx, wrapped, c.Writer); err != nil {
		// Headers are gone; the wrapped stream already logged the failure.
		c.Abort()
	}
}

// RegisterReportRoutes registers report routes on the given router group.
func (h *ReportHandler) RegisterReportRoutes(rg *gin.RouterGroup) {
	rg.GET("/reports/notes", h.Stream)
}
