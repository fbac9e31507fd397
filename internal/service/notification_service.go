package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/agency-hub/internal/events"
)

// NotificationService turns domain events into member-facing notifications.
// Delivery is log-only; the dashboard polls for notifications separately.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTimeEntryRecorded, n.handleTimeEntryRecorded)
	n.dispatcher.Subscribe(events.EventTeamMemberAdded, n.handleTeamMemberAdded)
}

func (n *NotificationService) handleTimeEntryRecorded(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TimeEntryRecordedPayload)
	if !ok {
		return nil
	}
	n.logger.Info("TimeEntryRecorded",
		zap.String("member_id", event.ActorID),
		zap.String("entry_id", payload.EntryID),
		zap.String("project_id", payload.ProjectID),
		zap.Int64("duration_seconds", payload.DurationSeconds))
	return nil
}

func (n *NotificationService) handleTeamMemberAdded(_ context.Context, event events.Event) error {
	n.logger.Info("TeamMemberAdded", zap.String("actor_id", event.ActorID), zap.Any("payload", event.Payload))
	return nil
}
