package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/soumnemishra/collaborative-drawing-platform/internal/domain"
	"github.com/soumnemishra/collaborative-drawing-platform/internal/repository"
	"github.com/soumnemishra/collaborative-drawing-platform/internal/room"
)

// sessionCacheTTL bounds how long a loaded session blob stays in the
// cache.
const sessionCacheTTL = 6 * time.Hour

// SessionService is the persistence collaborator: it saves a live room's
// serialized canvas, lists saved sessions, and loads one back into a room.
// Loads are cache-first with database fallback and asynchronous cache
// backfill. None of this runs on a room's dispatch path; the only touch
// point is the snapshot/load round trip through the room mailbox.
type SessionService struct {
	sessionRepo repository.SessionRepository
	cacheRepo   repository.CacheRepository
	rooms       room.Registry
}

// NewSessionService creates a SessionService.
func NewSessionService(sessionRepo repository.SessionRepository, cacheRepo repository.CacheRepository, rooms room.Registry) *SessionService {
	if sessionRepo == nil || cacheRepo == nil || rooms == nil {
		panic("all dependencies must be non-nil for SessionService")
	}
	return &SessionService{
		sessionRepo: sessionRepo,
		cacheRepo:   cacheRepo,
		rooms:       rooms,
	}
}

// Save snapshots the live room state under a new handle.
func (s *SessionService) Save(ctx context.Context, roomID, name string) (domain.SessionMeta, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "operation": "SaveSession"})

	coord, ok := s.rooms.Get(roomID)
	if !ok {
		logCtx.Warn("Save requested for a room that is not live")
		return domain.SessionMeta{}, ErrRoomNotFound
	}

	blob, err := coord.Snapshot(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Failed to snapshot room state")
		return domain.SessionMeta{}, ErrInternalServer
	}

	if name == "" {
		name = "untitled"
	}
	session := &domain.SavedSession{
		Handle: uuid.NewString(),
		RoomID: roomID,
		Name:   name,
		State:  blob,
	}
	if err := s.sessionRepo.Save(ctx, session); err != nil {
		logCtx.WithError(err).Error("Failed to persist saved session")
		return domain.SessionMeta{}, ErrInternalServer
	}
	logCtx.WithField("handle", session.Handle).Info("Session saved")

	// Warm the cache off the request path.
	go func(cached domain.SavedSession) {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.cacheRepo.SetSessionCache(cacheCtx, &cached, sessionCacheTTL); err != nil {
			logrus.WithError(err).WithField("handle", cached.Handle).Warn("Failed to warm session cache after save")
		}
	}(*session)

	return session.Meta(), nil
}

// List returns the metadata of every saved session.
func (s *SessionService) List(ctx context.Context) ([]domain.SessionMeta, error) {
	metas, err := s.sessionRepo.List(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to list saved sessions")
		return nil, ErrInternalServer
	}
	return metas, nil
}

// Load fetches a saved session (cache first, database fallback) and
// replaces the target room's state with it; the room re-broadcasts the
// full canvas to its members.
func (s *SessionService) Load(ctx context.Context, handle, roomID string) error {
	logCtx := logrus.WithFields(logrus.Fields{"handle": handle, "room_id": roomID, "operation": "LoadSession"})

	session, err := s.fetch(ctx, handle, logCtx)
	if err != nil {
		return err
	}

	coord, ok := s.rooms.Get(roomID)
	if !ok {
		logCtx.Warn("Load requested for a room that is not live")
		return ErrRoomNotFound
	}
	if err := coord.LoadState(ctx, session.State); err != nil {
		logCtx.WithError(err).Error("Failed to load state into room")
		return ErrInternalServer
	}
	logCtx.Info("Session loaded into room")
	return nil
}

// fetch implements the cache-first read strategy.
func (s *SessionService) fetch(ctx context.Context, handle string, logCtx *logrus.Entry) (*domain.SavedSession, error) {
	cached, err := s.cacheRepo.GetSessionCache(ctx, handle)
	if err == nil && cached != nil {
		logCtx.Debug("Session cache hit")
		return cached, nil
	}
	if err != nil && !errors.Is(err, repository.ErrCacheMiss) {
		logCtx.WithError(err).Warn("Session cache lookup failed, falling back to database")
	}

	session, err := s.sessionRepo.FindByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		logCtx.WithError(err).Error("Failed to read saved session from database")
		return nil, ErrInternalServer
	}

	// Backfill the cache asynchronously.
	go func(cached domain.SavedSession) {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.cacheRepo.SetSessionCache(cacheCtx, &cached, sessionCacheTTL); err != nil {
			logrus.WithError(err).WithField("handle", cached.Handle).Warn("Failed to backfill session cache")
		}
	}(*session)

	return session, nil
}

// AutosaveAll snapshots every live room under a generated autosave name.
// Called by the background worker; failures are per room and never abort
// the sweep.
func (s *SessionService) AutosaveAll(ctx context.Context) (int, error) {
	ids := s.rooms.ActiveIDs()
	saved := 0
	for _, roomID := range ids {
		if _, err := s.Save(ctx, roomID, "autosave "+time.Now().UTC().Format(time.RFC3339)); err != nil {
			logrus.WithError(err).WithField("room_id", roomID).Warn("Autosave failed for room")
			continue
		}
		saved++
	}
	return saved, nil
}
