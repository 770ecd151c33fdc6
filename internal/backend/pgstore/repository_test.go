package pgstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cooarq/cooarq-portal/internal/backend"
	"github.com/cooarq/cooarq-portal/internal/rbac"
)

// scan copies values into dest pointers of the same type.
func scan(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d targets", len(values), len(dest))
	}
	for i, v := range values {
		target := reflect.ValueOf(dest[i]).Elem()
		val := reflect.ValueOf(v)
		if !val.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("scan: column %d: %s into %s", i, val.Type(), target.Type())
		}
		target.Set(val)
	}
	return nil
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scan(r.values, dest)
}

type fakeRows struct {
	rows [][]any
	pos  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return scan(r.rows[r.pos-1], dest)
}

func (r *fakeRows) Values() ([]any, error) {
	return r.rows[r.pos-1], nil
}

type fakeQuerier struct {
	row      fakeRow
	rows     *fakeRows
	queryErr error

	lastSQL  string
	lastArgs []any
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.lastSQL, q.lastArgs = sql, args
	return q.row
}

func (q *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.lastSQL, q.lastArgs = sql, args
	if q.queryErr != nil {
		return nil, q.queryErr
	}
	return q.rows, nil
}

func ts(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func TestProfileByID(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	q := &fakeQuerier{row: fakeRow{values: []any{"u1", "ana@example.com", "Ana Souza", "manager", ts(created), ts(created.Add(time.Hour))}}}
	repo := &Repository{db: q}

	p, err := repo.ProfileByID(context.Background(), "token", "u1")
	require.NoError(t, err)
	assert.Equal(t, &rbac.Profile{
		ID:        "u1",
		Email:     "ana@example.com",
		FullName:  "Ana Souza",
		Role:      rbac.RoleManager,
		CreatedAt: created,
		UpdatedAt: created.Add(time.Hour),
	}, p)
	assert.Equal(t, selectProfile, q.lastSQL)
	assert.Equal(t, []any{"u1"}, q.lastArgs)
}

func TestProfileByIDNotFound(t *testing.T) {
	repo := &Repository{db: &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}}

	_, err := repo.ProfileByID(context.Background(), "", "missing")
	assert.ErrorIs(t, err, backend.ErrNotFound)
}

func TestProfileByIDErrors(t *testing.T) {
	repo := &Repository{db: &fakeQuerier{row: fakeRow{err: &pgconn.PgError{Code: "42501", Message: "permission denied for table users"}}}}
	_, err := repo.ProfileByID(context.Background(), "", "u1")
	var be *backend.Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, backend.KindService, be.Kind)
	assert.Equal(t, "42501", be.Code)
	assert.Contains(t, be.Message, "permission denied")

	repo = &Repository{db: &fakeQuerier{row: fakeRow{err: errors.New("connection reset")}}}
	_, err = repo.ProfileByID(context.Background(), "", "u1")
	assert.Equal(t, backend.KindNetwork, backend.KindOf(err))
}

func TestGrantsByUser(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	q := &fakeQuerier{rows: &fakeRows{rows: [][]any{
		{"g1", "u1", "crm", true, false, false, ts(created)},
		{"g2", "u1", "marketing", true, true, false, ts(created)},
	}}}
	repo := &Repository{db: q}

	grants, err := repo.GrantsByUser(context.Background(), "", "u1")
	require.NoError(t, err)
	require.Len(t, grants, 2)
	assert.Equal(t, rbac.Grant{ID: "g1", UserID: "u1", Module: rbac.ModuleCRM, CanRead: true, CreatedAt: created}, grants[0])
	assert.Equal(t, rbac.ModuleMarketing, grants[1].Module)
	assert.True(t, grants[1].CanWrite)
	assert.Equal(t, selectGrants, q.lastSQL)
}

func TestGrantsByUserErrors(t *testing.T) {
	repo := &Repository{db: &fakeQuerier{queryErr: errors.New("dial tcp: refused")}}
	_, err := repo.GrantsByUser(context.Background(), "", "u1")
	assert.Equal(t, backend.KindNetwork, backend.KindOf(err))

	repo = &Repository{db: &fakeQuerier{rows: &fakeRows{err: &pgconn.PgError{Code: "57014", Message: "canceling statement due to statement timeout"}}}}
	_, err = repo.GrantsByUser(context.Background(), "", "u1")
	assert.Equal(t, backend.KindService, backend.KindOf(err))

	repo = &Repository{db: &fakeQuerier{rows: &fakeRows{rows: [][]any{{"g1", "u1"}}}}}
	_, err = repo.GrantsByUser(context.Background(), "", "u1")
	assert.Error(t, err)
}
