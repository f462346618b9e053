package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightmesh/querycore/internal/domain"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (organization_id, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, organization_id, email, password_hash, role, created_at, updated_at`,
		u.OrganizationID, u.Email, u.PasswordHash, u.Role,
	)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrConflict
		}
		return nil, err
	}
	return created, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, email, password_hash, role, created_at, updated_at
		FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepository) GetByEmail(ctx context.Context, orgID, email string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, email, password_hash, role, created_at, updated_at
		FROM users WHERE organization_id = $1 AND email = $2`, orgID, email)
	return scanUser(row)
}

// GetByEmailGlobal looks a user up by email alone, across organizations —
// used at login time before the caller's organization is known. Email is
// globally unique (see users_email_key in the schema).
func (r *UserRepository) GetByEmailGlobal(ctx context.Context, email string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, email, password_hash, role, created_at, updated_at
		FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.OrganizationID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
