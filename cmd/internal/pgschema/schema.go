// Package pgschema holds the database schema shared by the Postgres stores.
package pgschema

import (
	"context"
	_ "embed"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultSchema is used by every store unless overridden.
const DefaultSchema = "cssebot"

//go:embed schema.sql
var schemaSQL string

var identRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ErrInvalidSchema is returned for schema names that are not plain identifiers.
var ErrInvalidSchema = errors.New("pgschema: invalid schema identifier")

// ValidIdent reports whether s is usable as a schema name.
func ValidIdent(s string) bool { return identRE.MatchString(s) }

// SQL returns the DDL for schema. Every statement is idempotent.
func SQL(schema string) (string, error) {
	schema = strings.TrimSpace(schema)
	if !ValidIdent(schema) {
		return "", ErrInvalidSchema
	}
	return strings.ReplaceAll(schemaSQL, "{{schema}}", pgx.Identifier{schema}.Sanitize()), nil
}

// Ensure applies the DDL for schema.
func Ensure(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	if pool == nil {
		return errors.New("pgschema: nil pool")
	}
	ddl, err := SQL(schema)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, ddl)
	return err
}

// Ident quotes schema.table for use in queries.
func Ident(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}
