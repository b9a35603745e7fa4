package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/loggate/loggate/internal/instrument"
	"github.com/loggate/loggate/internal/platform/config"
)

// ContextKeyPrincipal is the gin context key holding the caller identity.
const ContextKeyPrincipal = "principal"

// HeaderPrincipal is a caller identity taken from trusted gateway headers.
type HeaderPrincipal struct {
	Subject int64
	Name    string
}

// ID implements instrument.Principal.
func (p HeaderPrincipal) ID() int64 { return p.Subject }

// Username implements instrument.Principal.
func (p HeaderPrincipal) Username() string { return p.Name }

// Principal extracts the caller identity from the configured identity
// headers. The headers are trusted as-is; an upstream gateway is expected to
// have authenticated the caller and stripped any client-supplied values.
// Requests without both headers stay anonymous.
func Principal(cfg *config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		subject := c.GetHeader(cfg.SubjectHeader)
		name := c.GetHeader(cfg.UsernameHeader)
		if subject == "" || name == "" {
			c.Next()
			return
		}

		id, err := strconv.ParseInt(subject, 10, 64)
		if err != nil {
			c.Next()
			return
		}

		c.Set(ContextKeyPrincipal, HeaderPrincipal{Subject: id, Name: name})
		c.Next()
	}
}

// PrincipalFrom returns the caller identity stored on the gin context.
func PrincipalFrom(c *gin.Context) (instrument.Principal, bool) {
	v, ok := c.Get(ContextKeyPrincipal)
	if !ok {
		return nil, false
	}
	p, ok := v.(HeaderPrincipal)
	if !ok {
		return nil, false
	}
	return p, true
}
