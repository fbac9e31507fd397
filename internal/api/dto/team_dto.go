package dto

import (
	"time"

	"github.com/spec-kit/agency-hub/internal/domain"
)

// CreateMemberRequest payload for POST /api/team.
type CreateMemberRequest struct {
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Password   string  `json:"password"`
	Role       string  `json:"role"`
	HourlyRate float64 `json:"hourly_rate"`
}

// MemberResponse is the public view of a team member.
type MemberResponse struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Role       domain.Role `json:"role"`
	HourlyRate float64     `json:"hourly_rate"`
	Active     bool        `json:"active"`
	CreatedAt  time.Time   `json:"created_at"`
}

// NewMemberResponse maps a domain member, dropping the password hash.
func NewMemberResponse(m domain.TeamMember) MemberResponse {
	return MemberResponse{
		ID:         m.ID,
		Name:       m.Name,
		Email:      m.Email,
		Role:       m.Role,
		HourlyRate: m.HourlyRate,
		Active:     m.Active,
		CreatedAt:  m.CreatedAt,
	}
}
