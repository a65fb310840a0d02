package rbac

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("rbac: not found")

// ErrInvalidName rejects blank role or operation names.
var ErrInvalidName = errors.New("rbac: name required")

const pgForeignKeyViolation = "23503"

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists roles, grants and assignments in Postgres.
type Store struct {
	db querier
}

// NewStore constructs a Store. A *pgxpool.Pool satisfies db.
func NewStore(db querier) *Store {
	return &Store{db: db}
}

// HasActiveGrant reports whether any role assigned to the principal holds an
// active grant for operation.
func (s *Store) HasActiveGrant(ctx context.Context, principal Principal, operation string) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM role_grants g
			JOIN user_roles ur ON ur.role_id = g.role_id
			WHERE ur.user_id = $1 AND g.operation_name = $2 AND g.is_active
		)`, principal.ID, operation).Scan(&ok)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// EnsureRole creates the role when missing and returns it. created reports
// whether a new row was inserted.
func (s *Store) EnsureRole(ctx context.Context, name string) (role Role, created bool, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, false, ErrInvalidName
	}
	err = s.db.QueryRow(ctx, `
		INSERT INTO roles (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, created_at, (xmax = 0)`, name).Scan(&role.ID, &role.Name, &role.CreatedAt, &created)
	if err != nil {
		return Role{}, false, err
	}
	return role, created, nil
}

// EnsureGrant attaches operation to the role. An existing grant keeps its
// active flag.
func (s *Store) EnsureGrant(ctx context.Context, roleID int64, operation string) (grant Grant, created bool, err error) {
	operation = strings.TrimSpace(operation)
	if operation == "" {
		return Grant{}, false, ErrInvalidName
	}
	err = s.db.QueryRow(ctx, `
		INSERT INTO role_grants (role_id, operation_name, is_active) VALUES ($1, $2, TRUE)
		ON CONFLICT (role_id, operation_name) DO UPDATE SET operation_name = EXCLUDED.operation_name
		RETURNING id, role_id, operation_name, is_active, (xmax = 0)`, roleID, operation).
		Scan(&grant.ID, &grant.RoleID, &grant.OperationName, &grant.Active, &created)
	if err != nil {
		return Grant{}, false, translate(err)
	}
	return grant, created, nil
}

// SetGrantActive toggles a grant without deleting it.
func (s *Store) SetGrantActive(ctx context.Context, roleID int64, operation string, active bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE role_grants SET is_active = $3 WHERE role_id = $1 AND operation_name = $2`, roleID, operation, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignRole assigns a role to the given user. Assigning twice is a no-op.
func (s *Store) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id, assigned_at) VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, role_id) DO NOTHING`, userID, roleID)
	return translate(err)
}

// RemoveRole removes a role from a user.
func (s *Store) RemoveRole(ctx context.Context, userID, roleID int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRoles returns all roles with their grants, ordered by name.
func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.name, r.created_at, g.id, g.operation_name, g.is_active
		FROM roles r
		LEFT JOIN role_grants g ON g.role_id = r.id
		ORDER BY r.name, g.operation_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	index := make(map[int64]int)
	for rows.Next() {
		var (
			role    Role
			grantID *int64
			opName  *string
			active  *bool
		)
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt, &grantID, &opName, &active); err != nil {
			return nil, err
		}
		pos, ok := index[role.ID]
		if !ok {
			roles = append(roles, role)
			pos = len(roles) - 1
			index[role.ID] = pos
		}
		if grantID != nil && opName != nil {
			roles[pos].Grants = append(roles[pos].Grants, Grant{
				ID:            *grantID,
				RoleID:        role.ID,
				OperationName: *opName,
				Active:        active != nil && *active,
			})
		}
	}
	return roles, rows.Err()
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return ErrNotFound
	}
	return err
}
