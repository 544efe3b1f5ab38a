package studio

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

// PostgresStore is a Store backed by PostgreSQL.
//
// The pool is owned by the caller; Close is a no-op.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by the store (default: pgschema.DefaultSchema).
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

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

const studioColumns = `s.id, s.studio_number, s.studio_year, s.repo_name, s.created_at, s.updated_at`

func scanStudio(row pgx.Row) (Studio, error) {
	var out Studio
	err := row.Scan(&out.ID, &out.Number, &out.Year, &out.RepoName, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Studio{}, ErrNotFound
		}
		return Studio{}, err
	}
	return out, nil
}

func (s *PostgresStore) GetByGuild(ctx context.Context, guildID string) (Studio, error) {
	if s == nil || s.pool == nil {
		return Studio{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Studio{}, err
	}
	guildID = strings.TrimSpace(guildID)
	if guildID == "" {
		return Studio{}, ErrInvalidInput
	}

	studios := pgschema.Ident(s.schema, "studio")
	links := pgschema.Ident(s.schema, "studio_guild")

	return scanStudio(s.pool.QueryRow(ctx,
		`SELECT `+studioColumns+`
		   FROM `+studios+` s
		   JOIN `+links+` g ON g.studio_id = s.id
		  WHERE g.guild_id = $1`,
		guildID,
	))
}

func (s *PostgresStore) GetByKey(ctx context.Context, number, year int) (Studio, error) {
	if s == nil || s.pool == nil {
		return Studio{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Studio{}, err
	}

	studios := pgschema.Ident(s.schema, "studio")
	return scanStudio(s.pool.QueryRow(ctx,
		`SELECT `+studioColumns+`
		   FROM `+studios+` s
		  WHERE s.studio_number = $1 AND s.studio_year = $2`,
		number, year,
	))
}

func (s *PostgresStore) Create(ctx context.Context, in Studio) (Studio, error) {
	if s == nil || s.pool == nil {
		return Studio{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Studio{}, err
	}
	if strings.TrimSpace(in.ID) == "" || in.Number <= 0 || in.Year <= 0 || strings.TrimSpace(in.RepoName) == "" {
		return Studio{}, ErrInvalidInput
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	if in.UpdatedAt.IsZero() {
		in.UpdatedAt = in.CreatedAt
	}

	studios := pgschema.Ident(s.schema, "studio")
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+studios+` (id, studio_number, studio_year, repo_name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		in.ID, in.Number, in.Year, in.RepoName, in.CreatedAt, in.UpdatedAt,
	)
	if err != nil {
		if field, ok := uniqueViolation(err); ok {
			return Studio{}, ConflictError{Op: "studio.Create", Field: field}
		}
		return Studio{}, err
	}
	return in, nil
}

func (s *PostgresStore) UpdateRepository(ctx context.Context, studioID, repoName string, now time.Time) (Studio, error) {
	if s == nil || s.pool == nil {
		return Studio{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Studio{}, err
	}
	if strings.TrimSpace(studioID) == "" || strings.TrimSpace(repoName) == "" {
		return Studio{}, ErrInvalidInput
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	studios := pgschema.Ident(s.schema, "studio")
	return scanStudio(s.pool.QueryRow(ctx,
		`UPDATE `+studios+` s
		    SET repo_name = $2,
		        updated_at = $3
		  WHERE s.id = $1
		RETURNING `+studioColumns,
		studioID, repoName, now,
	))
}

// LinkGuild replaces the guild's link in a single statement.
func (s *PostgresStore) LinkGuild(ctx context.Context, guildID, studioID string) error {
	if s == nil || s.pool == nil {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	guildID = strings.TrimSpace(guildID)
	if guildID == "" || strings.TrimSpace(studioID) == "" {
		return ErrInvalidInput
	}

	links := pgschema.Ident(s.schema, "studio_guild")
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+links+` (guild_id, studio_id, linked_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (guild_id) DO UPDATE
		    SET studio_id = EXCLUDED.studio_id,
		        linked_at = EXCLUDED.linked_at`,
		guildID, studioID,
	)
	if err != nil {
		if isFKViolation(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *PostgresStore) UnlinkGuild(ctx context.Context, guildID string) (bool, error) {
	if s == nil || s.pool == nil {
		return false, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	links := pgschema.Ident(s.schema, "studio_guild")
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+links+` WHERE guild_id = $1`, strings.TrimSpace(guildID))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func isFKViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23503" // foreign_key_violation
}

func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}
	switch strings.ToLower(pgErr.ConstraintName) {
	case "uq_studio_number_year":
		return "number_year", true
	case "studio_pkey":
		return "id", true
	default:
		return "", true
	}
}
