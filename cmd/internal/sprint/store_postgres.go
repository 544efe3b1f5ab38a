package sprint

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lucashicks1/cssebot/cmd/internal/pgschema"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by PostgreSQL. The pool is owned by the caller.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by the store.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if !pgschema.ValidIdent(schema) {
			return ErrInvalidInput
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: pgschema.DefaultSchema}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, ErrInvalidInput
	}
	return st, nil
}

// Close is a no-op.
func (s *PostgresStore) Close() error { return nil }

const featureColumns = `studio_id, team_number, sprint_number, description, created_at, updated_at`

func scanFeature(row pgx.Row) (Feature, error) {
	var f Feature
	err := row.Scan(&f.StudioID, &f.Team, &f.Sprint, &f.Description, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Feature{}, ErrNotFound
	}
	return f, err
}

func (s *PostgresStore) Upsert(ctx context.Context, in Feature) (Feature, error) {
	if s == nil || s.pool == nil {
		return Feature{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Feature{}, err
	}
	f, err := Validate(in)
	if err != nil {
		return Feature{}, err
	}
	now := f.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	features := pgschema.Ident(s.schema, "sprint_feature")
	out, err := scanFeature(s.pool.QueryRow(ctx,
		`INSERT INTO `+features+` (studio_id, team_number, sprint_number, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 ON CONFLICT (studio_id, team_number, sprint_number) DO UPDATE
		    SET description = EXCLUDED.description,
		        updated_at = EXCLUDED.updated_at
		RETURNING `+featureColumns,
		f.StudioID, f.Team, f.Sprint, f.Description, now,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign_key_violation: unknown studio
			return Feature{}, ErrNotFound
		}
		return Feature{}, err
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, studioID string, team, sprint int) (Feature, error) {
	if s == nil || s.pool == nil {
		return Feature{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Feature{}, err
	}

	features := pgschema.Ident(s.schema, "sprint_feature")
	return scanFeature(s.pool.QueryRow(ctx,
		`SELECT `+featureColumns+`
		   FROM `+features+`
		  WHERE studio_id = $1 AND team_number = $2 AND sprint_number = $3`,
		studioID, team, sprint,
	))
}

func (s *PostgresStore) ListBySprint(ctx context.Context, studioID string, sprint int) ([]Feature, error) {
	if s == nil || s.pool == nil {
		return nil, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	features := pgschema.Ident(s.schema, "sprint_feature")
	rows, err := s.pool.Query(ctx,
		`SELECT `+featureColumns+`
		   FROM `+features+`
		  WHERE studio_id = $1 AND sprint_number = $2
		  ORDER BY team_number ASC`,
		studioID, sprint,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Feature, 0, 8)
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
