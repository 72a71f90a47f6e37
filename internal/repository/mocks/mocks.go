// Package mocks provides testify mocks for the repository interfaces,
// used by service-level tests.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/soumnemishra/collaborative-drawing-platform/internal/domain"
)

// SessionRepository mocks repository.SessionRepository.
type SessionRepository struct {
	mock.Mock
}

func (m *SessionRepository) Save(ctx context.Context, session *domain.SavedSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *SessionRepository) List(ctx context.Context) ([]domain.SessionMeta, error) {
	args := m.Called(ctx)
	if metas, ok := args.Get(0).([]domain.SessionMeta); ok {
		return metas, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionRepository) FindByHandle(ctx context.Context, handle string) (*domain.SavedSession, error) {
	args := m.Called(ctx, handle)
	if session, ok := args.Get(0).(*domain.SavedSession); ok {
		return session, args.Error(1)
	}
	return nil, args.Error(1)
}

// CacheRepository mocks repository.CacheRepository.
type CacheRepository struct {
	mock.Mock
}

func (m *CacheRepository) GetSessionCache(ctx context.Context, handle string) (*domain.SavedSession, error) {
	args := m.Called(ctx, handle)
	if session, ok := args.Get(0).(*domain.SavedSession); ok {
		return session, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CacheRepository) SetSessionCache(ctx context.Context, session *domain.SavedSession, ttl time.Duration) error {
	args := m.Called(ctx, session, ttl)
	return args.Error(0)
}

func (m *CacheRepository) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	args := m.Called(ctx, key, window)
	return args.Get(0).(int64), args.Error(1)
}
