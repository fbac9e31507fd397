package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/agency-hub/internal/clock"
	"github.com/spec-kit/agency-hub/internal/domain"
	"github.com/spec-kit/agency-hub/internal/events"
)

// IDGenerator produces unique identifiers.
type IDGenerator func() string

// UUIDGenerator returns random UUID strings.
func UUIDGenerator() IDGenerator {
	return uuid.NewString
}

// Stopper is the part of a timer the recorder needs.
type Stopper interface {
	Stop() int64
}

// TimeEntryStore receives finished time entries.
type TimeEntryStore interface {
	AddTimeEntry(ctx context.Context, entry *domain.TimeEntry) error
}

// Recorder turns a stopped timer into an immutable time entry.
type Recorder struct {
	store      TimeEntryStore
	ids        IDGenerator
	clock      clock.Clock
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// RecorderDependencies bundles collaborators for the recorder.
type RecorderDependencies struct {
	Store      TimeEntryStore
	IDs        IDGenerator
	Clock      clock.Clock
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewRecorder constructs a recorder; missing ID generator, clock and logger get defaults.
func NewRecorder(deps RecorderDependencies) *Recorder {
	r := &Recorder{
		store:      deps.Store,
		ids:        deps.IDs,
		clock:      deps.Clock,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
	if r.ids == nil {
		r.ids = UUIDGenerator()
	}
	if r.clock == nil {
		r.clock = clock.System()
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Finalize stops timer and persists an entry for the captured duration.
// A zero duration records nothing and returns a nil entry.
func (r *Recorder) Finalize(ctx context.Context, timer Stopper, meta domain.TimeEntryMetadata) (*domain.TimeEntry, error) {
	duration := timer.Stop()
	if duration <= 0 {
		r.logger.Debug("skipping empty work session", zap.String("user_id", meta.UserID))
		return nil, nil
	}

	entry := &domain.TimeEntry{
		ID:              r.ids(),
		ProjectID:       meta.ProjectID,
		UserID:          meta.UserID,
		Task:            meta.Task,
		Description:     meta.Description,
		DurationSeconds: duration,
		Date:            r.clock.Now().UTC(),
		Billable:        meta.Billable,
	}
	if err := r.store.AddTimeEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("persist time entry: %w", err)
	}

	r.logger.Info("time entry recorded",
		zap.String("entry_id", entry.ID),
		zap.String("user_id", entry.UserID),
		zap.String("project_id", entry.ProjectID),
		zap.Int64("duration_seconds", entry.DurationSeconds))

	if r.dispatcher != nil {
		err := r.dispatcher.Publish(ctx, events.Event{
			ID:        r.ids(),
			Type:      events.EventTimeEntryRecorded,
			ActorID:   entry.UserID,
			Timestamp: entry.Date,
			Payload: events.TimeEntryRecordedPayload{
				EntryID:         entry.ID,
				ProjectID:       entry.ProjectID,
				DurationSeconds: entry.DurationSeconds,
				Billable:        entry.Billable,
			},
		})
		if err != nil {
			r.logger.Warn("time entry event handlers failed", zap.String("entry_id", entry.ID), zap.Error(err))
		}
	}
	return entry, nil
}
