package repository

import (
	"context"
	"errors"

	"github.com/spec-kit/agency-hub/internal/domain"
	apperrors "github.com/spec-kit/agency-hub/pkg/util/errorutil"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = apperrors.ErrNotFound

// ErrDuplicateEmail is returned when a team member email is already taken.
var ErrDuplicateEmail = errors.New("email already registered")

// TimeEntryRepository defines persistence access for recorded work.
type TimeEntryRepository interface {
	AddTimeEntry(ctx context.Context, entry *domain.TimeEntry) error
	GetByID(ctx context.Context, id string) (*domain.TimeEntry, error)
	ListByUser(ctx context.Context, userID string, filter TimeEntryFilter) ([]domain.TimeEntry, error)
	Delete(ctx context.Context, id string) error
}

// TimeEntryFilter narrows entry listings.
type TimeEntryFilter struct {
	ProjectID string
	Limit     int
	Offset    int
}

// TeamMemberRepository defines persistence access for team members.
type TeamMemberRepository interface {
	Create(ctx context.Context, member *domain.TeamMember) error
	GetByID(ctx context.Context, id string) (*domain.TeamMember, error)
	GetByEmail(ctx context.Context, email string) (*domain.TeamMember, error)
	List(ctx context.Context) ([]domain.TeamMember, error)
}

// MaxListLimit is the largest page ListByUser returns.
const MaxListLimit = 500

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > MaxListLimit {
		return 100
	}
	return limit
}
