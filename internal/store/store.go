// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/kuri-sun/bous-ai/internal/domain"
)

// ErrSessionNotFound is returned by UpdateSession when the target row is missing.
var ErrSessionNotFound = errors.New("session not found")

// SessionPatch is a partial session update. Nil fields are left untouched,
// mirroring the merge semantics of a document store: callers only mention
// what they change.
type SessionPatch struct {
	Status      *string
	Place       *domain.Place
	Inputs      *InputsPatch
	Agentic     *domain.AgenticState
	Form        *domain.FormSchema
	Msg         *string
	PDFBlobName *string
	PDFURL      *string
}

// InputsPatch merges into the session's inputs key-wise; nil/empty fields
// preserve what is already stored.
type InputsPatch struct {
	Step1    *domain.Step1Input
	Step2    *domain.Step2Input
	Markdown *string
	HTML     *string
	Agentic  *domain.AcceptedProposal
}

// Repository defines the interface for persisting wizard sessions.
type Repository interface {
	// CreateSession persists a new session and returns its ID.
	CreateSession(ctx context.Context, session *domain.Session) (string, error)

	// GetSession retrieves a session by ID. Returns (nil, nil) when missing.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// UpdateSession applies a partial update to an existing session.
	// Fields not mentioned in the patch are preserved.
	UpdateSession(ctx context.Context, id string, patch SessionPatch) error

	// ListSessions returns up to limit sessions, newest first.
	ListSessions(ctx context.Context, limit int) ([]*domain.Session, error)

	// GetSessionPDFBlobName returns the stored PDF blob name for a session,
	// or "" when the session has no rendered PDF yet.
	GetSessionPDFBlobName(ctx context.Context, id string) (string, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// String returns a pointer to s, for building patches inline.
func String(s string) *string { return &s }
