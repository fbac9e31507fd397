package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/agency-hub/internal/domain"
)

const uniqueViolation = "23505"

type teamMemberRepository struct {
	pool *pgxpool.Pool
}

// NewTeamMemberRepository returns a Postgres-backed implementation.
func NewTeamMemberRepository(pool *pgxpool.Pool) TeamMemberRepository {
	return &teamMemberRepository{pool: pool}
}

func (r *teamMemberRepository) Create(ctx context.Context, member *domain.TeamMember) error {
	const query = `
        INSERT INTO team_members (id, name, email, password_hash, role, hourly_rate, active)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		member.ID,
		member.Name,
		member.Email,
		member.PasswordHash,
		member.Role,
		member.HourlyRate,
		member.Active,
	).Scan(&member.CreatedAt, &member.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}

func (r *teamMemberRepository) GetByID(ctx context.Context, id string) (*domain.TeamMember, error) {
	const query = `
        SELECT id, name, email, password_hash, role, hourly_rate, active, created_at, updated_at
        FROM team_members WHERE id=$1`
	return r.getOne(ctx, query, id)
}

func (r *teamMemberRepository) GetByEmail(ctx context.Context, email string) (*domain.TeamMember, error) {
	const query = `
        SELECT id, name, email, password_hash, role, hourly_rate, active, created_at, updated_at
        FROM team_members WHERE email=$1`
	return r.getOne(ctx, query, email)
}

func (r *teamMemberRepository) List(ctx context.Context) ([]domain.TeamMember, error) {
	const query = `
        SELECT id, name, email, password_hash, role, hourly_rate, active, created_at, updated_at
        FROM team_members ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TeamMember
	for rows.Next() {
		member, err := scanTeamMember(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *member)
	}
	return result, rows.Err()
}

func (r *teamMemberRepository) getOne(ctx context.Context, query string, arg string) (*domain.TeamMember, error) {
	member, err := scanTeamMember(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return member, err
}

func scanTeamMember(row pgx.Row) (*domain.TeamMember, error) {
	var (
		member domain.TeamMember
		role   string
	)
	if err := row.Scan(
		&member.ID,
		&member.Name,
		&member.Email,
		&member.PasswordHash,
		&role,
		&member.HourlyRate,
		&member.Active,
		&member.CreatedAt,
		&member.UpdatedAt,
	); err != nil {
		return nil, err
	}
	member.Role = domain.ParseRole(role)
	return &member, nil
}
