package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/soumnemishra/collaborative-drawing-platform/internal/service"
)

// AutosaveHandler processes session:autosave tasks by sweeping every live
// room through the SessionService. Persistence stays entirely off the
// room dispatch path; each room only pays one snapshot round trip through
// its mailbox.
type AutosaveHandler struct {
	sessions *service.SessionService
	log      *logrus.Entry
}

// NewAutosaveHandler creates an AutosaveHandler.
func NewAutosaveHandler(sessions *service.SessionService, logger *logrus.Logger) *AutosaveHandler {
	if sessions == nil {
		panic("SessionService cannot be nil for AutosaveHandler")
	}
	return &AutosaveHandler{
		sessions: sessions,
		log:      logger.WithField("component", "autosave_handler"),
	}
}

// ProcessTask implements asynq.Handler.
func (h *AutosaveHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	saved, err := h.sessions.AutosaveAll(ctx)
	if err != nil {
		h.log.WithError(err).Error("Autosave sweep failed")
		return err
	}
	h.log.WithField("rooms_saved", saved).Info("Autosave sweep complete")
	return nil
}
