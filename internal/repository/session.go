package repository

import (
	"context"

	"github.com/soumnemishra/collaborative-drawing-platform/internal/domain"
)

// SessionRepository stores saved canvas sessions. This is the durable half
// of the persistence collaborator; live room state never touches it.
type SessionRepository interface {
	// Save inserts a new saved session row. The handle must be set by the
	// caller and unique.
	Save(ctx context.Context, session *domain.SavedSession) error

	// List returns the metadata of every saved session, newest first,
	// without state blobs.
	List(ctx context.Context) ([]domain.SessionMeta, error)

	// FindByHandle returns the full saved session including its state
	// blob. Returns ErrSessionNotFound if the handle is unknown.
	FindByHandle(ctx context.Context, handle string) (*domain.SavedSession, error)
}
