package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

//go:embed seed.sql
var seedSQL string

// Migrate creates the crawldb schema objects and seeds the page_type
// and data_type reference tables. Both steps are idempotent, so the
// migrate entry point can run against an already-initialized database.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := pool.Exec(ctx, seedSQL); err != nil {
		return fmt.Errorf("seed reference tables: %w", err)
	}
	return nil
}
