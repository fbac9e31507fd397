package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/spec-kit/agency-hub/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS team_members (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL,
    hourly_rate   REAL NOT NULL DEFAULT 0,
    active        INTEGER NOT NULL DEFAULT 1,
    created_at    INTEGER NOT NULL,
    updated_at    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS time_entries (
    id               TEXT PRIMARY KEY,
    project_id       TEXT NOT NULL,
    user_id          TEXT NOT NULL,
    task             TEXT NOT NULL,
    description      TEXT NOT NULL DEFAULT '',
    duration_seconds INTEGER NOT NULL CHECK (duration_seconds > 0),
    entry_date       INTEGER NOT NULL,
    billable         INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_time_entries_user ON time_entries (user_id, entry_date);
`

// SQLite is a single-file store used for local development.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the schema exists.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite serializes writers; a single connection avoids SQLITE_BUSY churn
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// TimeEntries returns the time entry repository view of the store.
func (s *SQLite) TimeEntries() TimeEntryRepository {
	return &sqliteTimeEntries{db: s.db}
}

// TeamMembers returns the team member repository view of the store.
func (s *SQLite) TeamMembers() TeamMemberRepository {
	return &sqliteTeamMembers{db: s.db}
}

type sqliteTimeEntries struct {
	db *sql.DB
}

func (r *sqliteTimeEntries) AddTimeEntry(ctx context.Context, entry *domain.TimeEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO time_entries (id, project_id, user_id, task, description, duration_seconds, entry_date, billable)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ProjectID, entry.UserID, entry.Task, entry.Description,
		entry.DurationSeconds, entry.Date.UnixMilli(), entry.Billable,
	)
	if err != nil {
		return fmt.Errorf("insert time entry: %w", err)
	}
	return nil
}

func (r *sqliteTimeEntries) GetByID(ctx context.Context, id string) (*domain.TimeEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, user_id, task, description, duration_seconds, entry_date, billable
		FROM time_entries WHERE id = ?`, id)
	entry, err := scanSQLiteTimeEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return entry, err
}

func (r *sqliteTimeEntries) ListByUser(ctx context.Context, userID string, filter TimeEntryFilter) ([]domain.TimeEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, user_id, task, description, duration_seconds, entry_date, billable
		FROM time_entries
		WHERE user_id = ? AND (? = '' OR project_id = ?)
		ORDER BY entry_date DESC
		LIMIT ? OFFSET ?`,
		userID, filter.ProjectID, filter.ProjectID, normalizeLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("query time entries: %w", err)
	}
	defer rows.Close()

	var result []domain.TimeEntry
	for rows.Next() {
		entry, err := scanSQLiteTimeEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *entry)
	}
	return result, rows.Err()
}

func (r *sqliteTimeEntries) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM time_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete time entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTimeEntry(row rowScanner) (*domain.TimeEntry, error) {
	var (
		entry  domain.TimeEntry
		dateMs int64
	)
	if err := row.Scan(
		&entry.ID,
		&entry.ProjectID,
		&entry.UserID,
		&entry.Task,
		&entry.Description,
		&entry.DurationSeconds,
		&dateMs,
		&entry.Billable,
	); err != nil {
		return nil, err
	}
	entry.Date = time.UnixMilli(dateMs).UTC()
	return &entry, nil
}

type sqliteTeamMembers struct {
	db *sql.DB
}

func (r *sqliteTeamMembers) Create(ctx context.Context, member *domain.TeamMember) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO team_members (id, name, email, password_hash, role, hourly_rate, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		member.ID, member.Name, member.Email, member.PasswordHash, string(member.Role),
		member.HourlyRate, member.Active, now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert team member: %w", err)
	}
	member.CreatedAt = time.UnixMilli(now.UnixMilli()).UTC()
	member.UpdatedAt = member.CreatedAt
	return nil
}

func (r *sqliteTeamMembers) GetByID(ctx context.Context, id string) (*domain.TeamMember, error) {
	return r.getOne(ctx, `
		SELECT id, name, email, password_hash, role, hourly_rate, active, created_at, updated_at
		FROM team_members WHERE id = ?`, id)
}

func (r *sqliteTeamMembers) GetByEmail(ctx context.Context, email string) (*domain.TeamMember, error) {
	return r.getOne(ctx, `
		SELECT id, name, email, password_hash, role, hourly_rate, active, created_at, updated_at
		FROM team_members WHERE email = ?`, email)
}

func (r *sqliteTeamMembers) List(ctx context.Context) ([]domain.TeamMember, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, password_hash, role, hourly_rate, active, created_at, updated_at
		FROM team_members ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query team members: %w", err)
	}
	defer rows.Close()

	var result []domain.TeamMember
	for rows.Next() {
		member, err := scanSQLiteTeamMember(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *member)
	}
	return result, rows.Err()
}

func (r *sqliteTeamMembers) getOne(ctx context.Context, query, arg string) (*domain.TeamMember, error) {
	member, err := scanSQLiteTeamMember(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return member, err
}

func scanSQLiteTeamMember(row rowScanner) (*domain.TeamMember, error) {
	var (
		member               domain.TeamMember
		role                 string
		createdMs, updatedMs int64
	)
	if err := row.Scan(
		&member.ID,
		&member.Name,
		&member.Email,
		&member.PasswordHash,
		&role,
		&member.HourlyRate,
		&member.Active,
		&createdMs,
		&updatedMs,
	); err != nil {
		return nil, err
	}
	member.Role = domain.ParseRole(role)
	member.CreatedAt = time.UnixMilli(createdMs).UTC()
	member.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return &member, nil
}
