package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db querier
}

// NewRepository constructs a PostgreSQL repository. A *pgxpool.Pool or a
// pgx.Tx satisfies db.
func NewRepository(db querier) *PGRepository {
	return &PGRepository{db: db}
}

// FindByUsername fetches a user by username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := r.db.QueryRow(ctx, `
SELECT id, username, password_hash, is_active, is_superuser, created_at, updated_at
FROM users
WHERE username = $1`, username).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.IsActive, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// UpsertUser creates the user or refreshes its password hash and flags.
func (r *PGRepository) UpsertUser(ctx context.Context, username, passwordHash string, superuser bool) (int64, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, errors.New("auth: username required")
	}
	var id int64
	err := r.db.QueryRow(ctx, `
INSERT INTO users (username, password_hash, is_active, is_superuser)
VALUES ($1, $2, TRUE, $3)
ON CONFLICT (username) DO UPDATE
SET password_hash = EXCLUDED.password_hash,
    is_superuser = EXCLUDED.is_superuser,
    is_active = TRUE,
    updated_at = now()
RETURNING id`, username, passwordHash, superuser).Scan(&id)
	return id, err
}

// Deactivate disables the account without deleting its audit history.
func (r *PGRepository) Deactivate(ctx context.Context, username string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET is_active = FALSE, updated_at = now() WHERE username = $1`, username)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
