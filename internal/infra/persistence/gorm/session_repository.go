// Package gormpersistence implements the durable repositories on GORM.
package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/soumnemishra/collaborative-drawing-platform/internal/domain"
	"github.com/soumnemishra/collaborative-drawing-platform/internal/repository"
)

// GormSessionRepository is the SessionRepository implementation backed by
// the relational database.
type GormSessionRepository struct {
	db *gorm.DB
}

// NewGormSessionRepository creates a GormSessionRepository.
func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	if db == nil {
		panic("database connection cannot be nil for GormSessionRepository")
	}
	return &GormSessionRepository{db: db}
}

// Save inserts a new saved-session row. Handles are caller-generated
// UUIDs; a collision surfaces as ErrDuplicateEntry.
func (r *GormSessionRepository) Save(ctx context.Context, session *domain.SavedSession) error {
	err := r.db.WithContext(ctx).Create(session).Error
	if err != nil {
		if isDuplicateKeyError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: failed to save session %q for room %s: %w", session.Handle, session.RoomID, err)
	}
	return nil
}

// List returns saved-session metadata, newest first, without state blobs.
func (r *GormSessionRepository) List(ctx context.Context) ([]domain.SessionMeta, error) {
	var rows []domain.SavedSession
	err := r.db.WithContext(ctx).
		Select("handle", "room_id", "name", "created_at").
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: failed to list sessions: %w", err)
	}
	metas := make([]domain.SessionMeta, 0, len(rows))
	for i := range rows {
		metas = append(metas, rows[i].Meta())
	}
	return metas, nil
}

// FindByHandle returns the full row including the state blob.
func (r *GormSessionRepository) FindByHandle(ctx context.Context, handle string) (*domain.SavedSession, error) {
	var session domain.SavedSession
	err := r.db.WithContext(ctx).
		Where("handle = ?", handle).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSessionNotFound
		}
		return nil, fmt.Errorf("gorm: failed to find session %q: %w", handle, err)
	}
	return &session, nil
}

// isDuplicateKeyError recognizes MySQL unique-constraint violations
// without importing the driver error types everywhere.
func isDuplicateKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Duplicate entry")
}
