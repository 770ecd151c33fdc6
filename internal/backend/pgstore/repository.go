// Package pgstore reads profile and grant rows straight from the backend's
// Postgres database.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cooarq/cooarq-portal/internal/backend"
	"github.com/cooarq/cooarq-portal/internal/rbac"
)

const (
	selectProfile = `SELECT id::text, email, full_name, role, created_at, updated_at
FROM public.users
WHERE id = $1`

	selectGrants = `SELECT id::text, user_id::text, module, can_read, can_write, can_delete, created_at
FROM public.user_permissions
WHERE user_id = $1
ORDER BY module`
)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository implements backend.Records using PostgreSQL.
type Repository struct {
	db querier
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// ProfileByID implements backend.Records. The access token is unused since
// the pool connects with its own role.
func (r *Repository) ProfileByID(ctx context.Context, _ string, id string) (*rbac.Profile, error) {
	var (
		p                    rbac.Profile
		role                 string
		createdAt, updatedAt pgtype.Timestamptz
	)
	err := r.db.QueryRow(ctx, selectProfile, id).Scan(&p.ID, &p.Email, &p.FullName, &role, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, backend.ErrNotFound
		}
		return nil, wrap("profile", err)
	}
	p.Role = rbac.Role(role)
	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time
	return &p, nil
}

// GrantsByUser implements backend.Records.
func (r *Repository) GrantsByUser(ctx context.Context, _ string, userID string) ([]rbac.Grant, error) {
	rows, err := r.db.Query(ctx, selectGrants, userID)
	if err != nil {
		return nil, wrap("grants", err)
	}
	defer rows.Close()

	var grants []rbac.Grant
	for rows.Next() {
		var (
			g         rbac.Grant
			module    string
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&g.ID, &g.UserID, &module, &g.CanRead, &g.CanWrite, &g.CanDelete, &createdAt); err != nil {
			return nil, wrap("grants", err)
		}
		g.Module = rbac.Module(module)
		g.CreatedAt = createdAt.Time
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("grants", err)
	}
	return grants, nil
}

func wrap(what string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &backend.Error{
			Kind:    backend.KindService,
			Code:    pgErr.Code,
			Message: fmt.Sprintf("pgstore: %s: %s", what, pgErr.Message),
			Err:     err,
		}
	}
	return backend.NetworkError("pgstore "+what, err)
}

var _ backend.Records = (*Repository)(nil)
