// Package domain contains business logic types and errors.
// Domain errors represent business-level failures, NOT HTTP errors.
// They are infrastructure-agnostic and mapped to transport codes by adapters.
package domain

import (
	"strings"
	"time"
)

// Note title length limits.
const (
	MaxTitleLength = 200
	MaxBodyLength  = 10000
)

// Note is a stored note.
type Note struct {
	ID        int64
	Title     string
	Body      string
	CreatedAt time.Time
}

// Validate checks the business rules for a note.
func (n *Note) Validate() error {
	title := strings.TrimSpace(n.Title)
	if title == "" {
		return NewValidationError("title", "cannot be empty")
	}
	if len(n.Title) > MaxTitleLength {
		return NewValidationError("title", "too long")
	}
	if len(n.Body) > MaxBodyLength {
		return NewValidationError("body", "too long")
	}
	return nil
}
