package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/agency-hub/internal/domain"
)

type timeEntryRepository struct {
	pool *pgxpool.Pool
}

// NewTimeEntryRepository returns a Postgres-backed implementation.
func NewTimeEntryRepository(pool *pgxpool.Pool) TimeEntryRepository {
	return &timeEntryRepository{pool: pool}
}

func (r *timeEntryRepository) AddTimeEntry(ctx context.Context, entry *domain.TimeEntry) error {
	const query = `
        INSERT INTO time_entries (id, project_id, user_id, task, description, duration_seconds, entry_date, billable)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.ProjectID,
		entry.UserID,
		entry.Task,
		entry.Description,
		entry.DurationSeconds,
		entry.Date,
		entry.Billable,
	)
	return err
}

func (r *timeEntryRepository) GetByID(ctx context.Context, id string) (*domain.TimeEntry, error) {
	const query = `
        SELECT id, project_id, user_id, task, description, duration_seconds, entry_date, billable
        FROM time_entries WHERE id=$1`

	entry, err := scanTimeEntry(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return entry, err
}

func (r *timeEntryRepository) ListByUser(ctx context.Context, userID string, filter TimeEntryFilter) ([]domain.TimeEntry, error) {
	const query = `
        SELECT id, project_id, user_id, task, description, duration_seconds, entry_date, billable
        FROM time_entries
        WHERE user_id=$1 AND ($2 = '' OR project_id=$2)
        ORDER BY entry_date DESC
        LIMIT $3 OFFSET $4`

	rows, err := r.pool.Query(ctx, query, userID, filter.ProjectID, normalizeLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TimeEntry
	for rows.Next() {
		entry, err := scanTimeEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *entry)
	}
	return result, rows.Err()
}

func (r *timeEntryRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM time_entries WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTimeEntry(row pgx.Row) (*domain.TimeEntry, error) {
	var entry domain.TimeEntry
	if err := row.Scan(
		&entry.ID,
		&entry.ProjectID,
		&entry.UserID,
		&entry.Task,
		&entry.Description,
		&entry.DurationSeconds,
		&entry.Date,
		&entry.Billable,
	); err != nil {
		return nil, err
	}
	return &entry, nil
}
