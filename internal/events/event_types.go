package events

import (
	"time"

	"github.com/spec-kit/agency-hub/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTimeEntryRecorded EventType = "time_entry_recorded"
	EventTimeEntryDeleted  EventType = "time_entry_deleted"
	EventTeamMemberAdded   EventType = "team_member_added"
	EventTimerChanged      EventType = "timer_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TimeEntryRecordedPayload payload.
type TimeEntryRecordedPayload struct {
	EntryID         string `json:"entry_id"`
	ProjectID       string `json:"project_id"`
	DurationSeconds int64  `json:"duration_seconds"`
	Billable        bool   `json:"billable"`
}

// TimeEntryDeletedPayload payload.
type TimeEntryDeletedPayload struct {
	EntryID string `json:"entry_id"`
}

// TeamMemberAddedPayload payload.
type TeamMemberAddedPayload struct {
	MemberID string      `json:"member_id"`
	Email    string      `json:"email"`
	Role     domain.Role `json:"role"`
}

// TimerChangedPayload payload.
type TimerChangedPayload struct {
	Action string            `json:"action"`
	State  domain.TimerState `json:"state"`
}
