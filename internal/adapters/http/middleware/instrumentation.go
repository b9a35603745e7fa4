// Package middleware provides HTTP middleware components for the Gin server.
package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loggate/loggate/internal/instrument"
)

const (
	// HeaderRequestID is the header carrying the request id in and out.
	HeaderRequestID = "X-Request-ID"

	// HeaderGatewayRequestID is the secondary header an upstream gateway may
	// use for its own request id. It is consulted only when HeaderRequestID
	// is absent.
	HeaderGatewayRequestID = "X-Correlation-ID"

	// ContextKeyRequestID is the gin context key holding the resolved id.
	ContextKeyRequestID = "request_id"
)

// GatewayRequestID stores a gateway-assigned id from the secondary header as
// transport metadata, so instrumentation can fall back to it when the primary
// header carries none.
func GatewayRequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.GetHeader(HeaderGatewayRequestID); id != "" {
			ctx := instrument.ContextWithRequestID(c.Request.Context(), id)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// Instrumentation runs the request lifecycle instrumentation: it prepares the
// request (request id resolution, log-context bindings, started line), echoes
// the id on the response, and guarantees the finished line through a defer so
// it is emitted however the chain ends.
//
// Internal endpoints under /-/ are skipped to keep probe noise out of the
// logs.
func Instrumentation(inst *instrument.Instrumentor) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/-/") {
			c.Next()
			return
		}

		req := ginRequest{c}
		ctx, id := inst.Prepare(c.Request.Context(), req)
		c.Request = c.Request.WithContext(ctx)
		c.Set(ContextKeyRequestID, id)
		c.Writer.Header().Set(HeaderRequestID, id)

		start := time.Now()
		defer func() {
			inst.Finalize(ctx, req, ginResponse{c}, start)
		}()

		c.Next()
	}
}

// GetRequestID extracts the resolved request ID from the gin.Context.
// Returns empty string if not set.
func GetRequestID(c *gin.Context) string {
	if id, ok := c.Get(ContextKeyRequestID); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// ginRequest adapts gin's request view to the instrumentation interfaces.
type ginRequest struct {
	c *gin.Context
}

func (r ginRequest) Method() string             { return r.c.Request.Method }
func (r ginRequest) Path() string               { return r.c.Request.URL.Path }
func (r ginRequest) Query() map[string][]string { return r.c.Request.URL.Query() }
func (r ginRequest) Header(name string) string  { return r.c.GetHeader(name) }
func (r ginRequest) RemoteAddr() string         { return r.c.Request.RemoteAddr }

func (r ginRequest) Principal() (instrument.Principal, bool) {
	return PrincipalFrom(r.c)
}

// ginResponse adapts gin's response writer to the instrumentation interfaces.
type ginResponse struct {
	c *gin.Context
}

func (r ginResponse) StatusCode() int {
	return r.c.Writer.Status()
}

func (r ginResponse) Header(name string) string {
	return r.c.Writer.Header().Get(name)
}
