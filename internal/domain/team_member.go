package domain

import "time"

// TeamMember models a person with dashboard access.
type TeamMember struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	HourlyRate   float64
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
