package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-fragments/pkg/fragments"
)

//go:embed schema.sql
var schema string

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements fragments.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// EnsureSchema creates the fragment table when it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return r.handlePostgresError("ensure schema", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("duplicate fragment")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "23514": // check_violation
			return fmt.Errorf("constraint %s violated", pgErr.ConstraintName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (r *Repository) WriteFragment(ctx context.Context, fragment *fragments.Fragment) error {
	query := `
		INSERT INTO fragment (owner_id, id, type, size, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id, id) DO UPDATE SET
			type = EXCLUDED.type,
			size = EXCLUDED.size,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		fragment.OwnerID, fragment.ID, fragment.Type, fragment.Size,
		fragment.Created, fragment.Updated)
	if err != nil {
		return r.handlePostgresError("write fragment", err)
	}
	return nil
}

func (r *Repository) ReadFragment(ctx context.Context, ownerID, id string) (*fragments.Fragment, error) {
	query := `
		SELECT id, owner_id, type, size, created_at, updated_at
		FROM fragment WHERE owner_id = $1 AND id = $2`

	var f fragments.Fragment
	err := r.db.QueryRow(ctx, query, ownerID, id).Scan(
		&f.ID, &f.OwnerID, &f.Type, &f.Size, &f.Created, &f.Updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fragments.ErrNotFound
		}
		return nil, r.handlePostgresError("read fragment", err)
	}

	f.Created = f.Created.UTC()
	f.Updated = f.Updated.UTC()
	return &f, nil
}

func (r *Repository) ListFragments(ctx context.Context, ownerID string) ([]*fragments.Fragment, error) {
	query := `
		SELECT id, owner_id, type, size, created_at, updated_at
		FROM fragment WHERE owner_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, r.handlePostgresError("list fragments", err)
	}
	defer rows.Close()

	result := []*fragments.Fragment{}
	for rows.Next() {
		var f fragments.Fragment
		if err := rows.Scan(&f.ID, &f.OwnerID, &f.Type, &f.Size, &f.Created, &f.Updated); err != nil {
			return nil, r.handlePostgresError("scan fragment", err)
		}
		f.Created = f.Created.UTC()
		f.Updated = f.Updated.UTC()
		result = append(result, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list fragments", err)
	}
	return result, nil
}

func (r *Repository) DeleteFragment(ctx context.Context, ownerID, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM fragment WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return r.handlePostgresError("delete fragment", err)
	}
	if tag.RowsAffected() == 0 {
		return fragments.ErrNotFound
	}
	return nil
}
