package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/agency-hub/internal/domain"
)

// Memory is a process-local store used when no database is configured and in tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]domain.TimeEntry
	members map[string]domain.TeamMember
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]domain.TimeEntry),
		members: make(map[string]domain.TeamMember),
	}
}

// TimeEntries returns the time entry repository view of the store.
func (m *Memory) TimeEntries() TimeEntryRepository {
	return memoryTimeEntries{m}
}

// TeamMembers returns the team member repository view of the store.
func (m *Memory) TeamMembers() TeamMemberRepository {
	return memoryTeamMembers{m}
}

type memoryTimeEntries struct {
	*Memory
}

func (m memoryTimeEntries) AddTimeEntry(_ context.Context, entry *domain.TimeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.ID] = *entry
	return nil
}

func (m memoryTimeEntries) GetByID(_ context.Context, id string) (*domain.TimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &entry, nil
}

func (m memoryTimeEntries) ListByUser(_ context.Context, userID string, filter TimeEntryFilter) ([]domain.TimeEntry, error) {
	m.mu.RLock()
	var result []domain.TimeEntry
	for _, entry := range m.entries {
		if entry.UserID != userID {
			continue
		}
		if filter.ProjectID != "" && entry.ProjectID != filter.ProjectID {
			continue
		}
		result = append(result, entry)
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Date.Equal(result[j].Date) {
			return result[i].ID < result[j].ID
		}
		return result[i].Date.After(result[j].Date)
	})

	if filter.Offset >= len(result) {
		return nil, nil
	}
	result = result[filter.Offset:]
	if limit := normalizeLimit(filter.Limit); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m memoryTimeEntries) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

type memoryTeamMembers struct {
	*Memory
}

func (m memoryTeamMembers) Create(_ context.Context, member *domain.TeamMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.members {
		if strings.EqualFold(existing.Email, member.Email) {
			return ErrDuplicateEmail
		}
	}
	now := time.Now().UTC()
	member.CreatedAt = now
	member.UpdatedAt = now
	m.members[member.ID] = *member
	return nil
}

func (m memoryTeamMembers) GetByID(_ context.Context, id string) (*domain.TeamMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	member, ok := m.members[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &member, nil
}

func (m memoryTeamMembers) GetByEmail(_ context.Context, email string) (*domain.TeamMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, member := range m.members {
		if strings.EqualFold(member.Email, email) {
			found := member
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (m memoryTeamMembers) List(_ context.Context) ([]domain.TeamMember, error) {
	m.mu.RLock()
	result := make([]domain.TeamMember, 0, len(m.members))
	for _, member := range m.members {
		result = append(result, member)
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}
