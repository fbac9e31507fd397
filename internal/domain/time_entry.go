package domain

import "time"

// TimeEntry is an immutable record of finished work.
type TimeEntry struct {
	ID              string
	ProjectID       string
	UserID          string
	Task            string
	Description     string
	DurationSeconds int64
	Date            time.Time
	Billable        bool
}

// TimeEntryMetadata is the caller-supplied part of a time entry.
type TimeEntryMetadata struct {
	ProjectID   string
	UserID      string
	Task        string
	Description string
	Billable    bool
}

// ProjectTotal aggregates recorded seconds for a single project.
type ProjectTotal struct {
	ProjectID       string
	DurationSeconds int64
	BillableSeconds int64
	Entries         int
}

// TimeSummary is the per-user rollup shown on the dashboard.
type TimeSummary struct {
	UserID          string
	TotalSeconds    int64
	BillableSeconds int64
	Projects        []ProjectTotal
}
