package member

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

func scanUser(row pgx.Row) (User, error) {
	var (
		out User
		gh  *int64
	)
	if err := row.Scan(&out.ID, &gh, &out.CreatedAt, &out.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	if gh != nil {
		out.GitHubID = *gh
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (User, error) {
	if s == nil || s.pool == nil {
		return User{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	users := pgschema.Ident(s.schema, "discord_user")
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT discord_user_id, gh_id, created_at, updated_at
		   FROM `+users+`
		  WHERE discord_user_id = $1`,
		strings.TrimSpace(userID),
	))
}

func (s *PostgresStore) GetByGitHub(ctx context.Context, githubID int64) (User, error) {
	if s == nil || s.pool == nil || githubID <= 0 {
		return User{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	users := pgschema.Ident(s.schema, "discord_user")
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT discord_user_id, gh_id, created_at, updated_at
		   FROM `+users+`
		  WHERE gh_id = $1`,
		githubID,
	))
}

func (s *PostgresStore) SetGitHub(ctx context.Context, userID string, githubID int64, now time.Time) (User, error) {
	if s == nil || s.pool == nil {
		return User{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" || githubID < 0 {
		return User{}, ErrInvalidInput
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var gh *int64
	if githubID != 0 {
		gh = &githubID
	}

	users := pgschema.Ident(s.schema, "discord_user")
	u, err := scanUser(s.pool.QueryRow(ctx,
		`INSERT INTO `+users+` (discord_user_id, gh_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $3)
		 ON CONFLICT (discord_user_id) DO UPDATE
		    SET gh_id = EXCLUDED.gh_id,
		        updated_at = EXCLUDED.updated_at
		RETURNING discord_user_id, gh_id, created_at, updated_at`,
		userID, gh, now,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation on gh_id
			return User{}, ErrConflict
		}
		return User{}, err
	}
	return u, nil
}
