package dto

import (
	"time"

	"github.com/spec-kit/agency-hub/internal/domain"
)

// StopTimerRequest carries the metadata attached to the recorded entry.
type StopTimerRequest struct {
	ProjectID   string `json:"project_id"`
	Task        string `json:"task"`
	Description string `json:"description"`
	Billable    bool   `json:"billable"`
}

// TimeEntryResponse is the public shape of a recorded entry.
type TimeEntryResponse struct {
	ID              string    `json:"id"`
	ProjectID       string    `json:"project_id"`
	UserID          string    `json:"user_id"`
	Task            string    `json:"task"`
	Description     string    `json:"description"`
	DurationSeconds int64     `json:"duration_seconds"`
	Date            time.Time `json:"date"`
	Billable        bool      `json:"billable"`
}

// ProjectTotalResponse is one row of a summary.
type ProjectTotalResponse struct {
	ProjectID       string `json:"project_id"`
	DurationSeconds int64  `json:"duration_seconds"`
	BillableSeconds int64  `json:"billable_seconds"`
	Entries         int    `json:"entries"`
}

// TimeSummaryResponse rolls up a member's recorded time.
type TimeSummaryResponse struct {
	UserID          string                 `json:"user_id"`
	TotalSeconds    int64                  `json:"total_seconds"`
	BillableSeconds int64                  `json:"billable_seconds"`
	Projects        []ProjectTotalResponse `json:"projects"`
}

// NewTimeEntryResponse maps a domain entry.
func NewTimeEntryResponse(e domain.TimeEntry) TimeEntryResponse {
	return TimeEntryResponse{
		ID:              e.ID,
		ProjectID:       e.ProjectID,
		UserID:          e.UserID,
		Task:            e.Task,
		Description:     e.Description,
		DurationSeconds: e.DurationSeconds,
		Date:            e.Date,
		Billable:        e.Billable,
	}
}

// NewTimeSummaryResponse maps a domain summary.
func NewTimeSummaryResponse(s domain.TimeSummary) TimeSummaryResponse {
	out := TimeSummaryResponse{
		UserID:          s.UserID,
		TotalSeconds:    s.TotalSeconds,
		BillableSeconds: s.BillableSeconds,
		Projects:        make([]ProjectTotalResponse, 0, len(s.Projects)),
	}
	for _, p := range s.Projects {
		out.Projects = append(out.Projects, ProjectTotalResponse(p))
	}
	return out
}
