package links

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the Postgres connection used for slug lookups.
type PostgresConfig struct {
	DSN   string
	Table string
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore resolves slugs from a Postgres table.
type PostgresStore struct {
	pool  rowQuerier
	table string
}

// NewPostgresStore connects a pool and returns a store.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("links.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "links"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresStore{pool: pool, table: table}, nil
}

// NewPostgresStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewPostgresStoreWithPool(pool rowQuerier, table string) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "links"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresStore{pool: pool, table: table}, nil
}

// Resolve fetches the destination for a slug.
func (s *PostgresStore) Resolve(ctx context.Context, slug string) (Link, error) {
	if slug == "" {
		return Link{}, ErrNotFound
	}
	query := fmt.Sprintf(`SELECT destination_url FROM %s WHERE slug = $1`, s.table)
	var dest string
	if err := s.pool.QueryRow(ctx, query, slug).Scan(&dest); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Link{}, ErrNotFound
		}
		return Link{}, fmt.Errorf("resolve slug: %w", err)
	}
	return Link{Slug: slug, Destination: dest}, nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
