package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/agency-hub/internal/cache"
	"github.com/spec-kit/agency-hub/internal/clock"
	"github.com/spec-kit/agency-hub/internal/domain"
	"github.com/spec-kit/agency-hub/internal/events"
	"github.com/spec-kit/agency-hub/internal/repository"
	apperrors "github.com/spec-kit/agency-hub/pkg/util/errorutil"
)

// TimeEntryService serves recorded time and memoized per-member summaries.
type TimeEntryService struct {
	entries    repository.TimeEntryRepository
	summaries  *cache.TTLCache[string, domain.TimeSummary]
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
}

// TimeEntryDependencies bundles collaborators for the time entry service.
type TimeEntryDependencies struct {
	Entries    repository.TimeEntryRepository
	Summaries  *cache.TTLCache[string, domain.TimeSummary]
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Logger     *zap.Logger
}

// NewTimeEntryService constructs the service and subscribes it to entry events
// so cached summaries are dropped when new work is recorded.
func NewTimeEntryService(deps TimeEntryDependencies) *TimeEntryService {
	s := &TimeEntryService{
		entries:    deps.Entries,
		summaries:  deps.Summaries,
		dispatcher: deps.Dispatcher,
		clock:      deps.Clock,
		logger:     deps.Logger,
	}
	if s.clock == nil {
		s.clock = clock.System()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.summaries == nil {
		s.summaries = cache.New[string, domain.TimeSummary](128, 5*time.Minute, s.clock)
	}
	if s.dispatcher != nil {
		s.dispatcher.Subscribe(events.EventTimeEntryRecorded, s.invalidateOnEvent)
		s.dispatcher.Subscribe(events.EventTimeEntryDeleted, s.invalidateOnEvent)
	}
	return s
}

// List returns the member's entries, newest first.
func (s *TimeEntryService) List(ctx context.Context, memberID string, filter repository.TimeEntryFilter) ([]domain.TimeEntry, error) {
	return s.entries.ListByUser(ctx, memberID, filter)
}

// Summary returns per-project totals for the member, served from cache when fresh.
func (s *TimeEntryService) Summary(ctx context.Context, memberID string) (domain.TimeSummary, error) {
	if cached, ok := s.summaries.Get(memberID); ok {
		return cached, nil
	}

	entries, err := s.allEntries(ctx, memberID)
	if err != nil {
		return domain.TimeSummary{}, err
	}
	summary := summarize(memberID, entries)
	s.summaries.Set(memberID, summary)
	return summary, nil
}

// Delete removes an entry owned by actor. Members may only delete their own entries
// unless allowOthers is set.
func (s *TimeEntryService) Delete(ctx context.Context, actorID, entryID string, allowOthers bool) error {
	entry, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.UserID != actorID && !allowOthers {
		return apperrors.NewForbidden("cannot delete another member's time entry")
	}
	if err := s.entries.Delete(ctx, entryID); err != nil {
		return err
	}

	s.summaries.Delete(entry.UserID)
	if s.dispatcher != nil {
		err := s.dispatcher.Publish(ctx, events.Event{
			Type:      events.EventTimeEntryDeleted,
			ActorID:   entry.UserID,
			Timestamp: s.clock.Now().UTC(),
			Payload:   events.TimeEntryDeletedPayload{EntryID: entryID},
		})
		if err != nil {
			s.logger.Warn("time entry delete handlers failed", zap.String("entry_id", entryID), zap.Error(err))
		}
	}
	return nil
}

// allEntries pages through every entry the member has recorded.
func (s *TimeEntryService) allEntries(ctx context.Context, memberID string) ([]domain.TimeEntry, error) {
	var all []domain.TimeEntry
	filter := repository.TimeEntryFilter{Limit: repository.MaxListLimit}
	for {
		page, err := s.entries.ListByUser(ctx, memberID, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < repository.MaxListLimit {
			return all, nil
		}
		filter.Offset += len(page)
	}
}

func (s *TimeEntryService) invalidateOnEvent(_ context.Context, event events.Event) error {
	s.summaries.Delete(event.ActorID)
	return nil
}

func summarize(memberID string, entries []domain.TimeEntry) domain.TimeSummary {
	summary := domain.TimeSummary{UserID: memberID}
	byProject := make(map[string]*domain.ProjectTotal)

	for _, e := range entries {
		total, ok := byProject[e.ProjectID]
		if !ok {
			total = &domain.ProjectTotal{ProjectID: e.ProjectID}
			byProject[e.ProjectID] = total
		}
		total.DurationSeconds += e.DurationSeconds
		total.Entries++
		summary.TotalSeconds += e.DurationSeconds
		if e.Billable {
			total.BillableSeconds += e.DurationSeconds
			summary.BillableSeconds += e.DurationSeconds
		}
	}

	summary.Projects = make([]domain.ProjectTotal, 0, len(byProject))
	for _, total := range byProject {
		summary.Projects = append(summary.Projects, *total)
	}
	sort.Slice(summary.Projects, func(i, j int) bool {
		return summary.Projects[i].ProjectID < summary.Projects[j].ProjectID
	})
	return summary
}
