// Package postgres provides a Postgres-backed visited set.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/linkcrawler/internal/crawler"
)

const defaultTable = "visited_urls"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool backing the visited set.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// VisitedSet keeps claimed URLs in a table keyed by (crawl_id, url). Rows
// from other crawls are never read.
type VisitedSet struct {
	pool    pool
	table   string
	crawlID string
}

var _ crawler.VisitedSet = (*VisitedSet)(nil)

// NewVisitedSet connects to Postgres and creates the table if missing.
func NewVisitedSet(ctx context.Context, cfg Config, crawlID string) (*VisitedSet, error) {
	if cfg.DSN == "" {
		return nil, errors.New("visited.postgres_dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	set, err := NewVisitedSetWithPool(p, cfg.Table, crawlID)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := set.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return set, nil
}

// NewVisitedSetWithPool constructs a set from an existing pool (primarily for testing).
func NewVisitedSetWithPool(p pool, table, crawlID string) (*VisitedSet, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	if crawlID == "" {
		return nil, errors.New("crawl id is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &VisitedSet{pool: p, table: table, crawlID: crawlID}, nil
}

// EnsureSchema creates the visited table when it does not exist yet.
func (s *VisitedSet) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	crawl_id   TEXT        NOT NULL,
	url        TEXT        NOT NULL,
	claimed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (crawl_id, url)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Claim inserts the URL for this crawl. The primary key turns a concurrent
// second insert into a no-op, so exactly one caller sees a row affected.
func (s *VisitedSet) Claim(ctx context.Context, url string) (bool, error) {
	query := fmt.Sprintf(
		`INSERT INTO %s (crawl_id, url) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		s.table,
	)
	tag, err := s.pool.Exec(ctx, query, s.crawlID, url)
	if err != nil {
		return false, fmt.Errorf("insert visited url: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Len counts the URLs claimed by this crawl.
func (s *VisitedSet) Len(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE crawl_id = $1`, s.table)
	var n int64
	if err := s.pool.QueryRow(ctx, query, s.crawlID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count visited urls: %w", err)
	}
	return int(n), nil
}

// Members returns this crawl's URLs in lexical (byte) order.
func (s *VisitedSet) Members(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT url FROM %s WHERE crawl_id = $1`, s.table)
	rows, err := s.pool.Query(ctx, query, s.crawlID)
	if err != nil {
		return nil, fmt.Errorf("select visited urls: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan visited url: %w", err)
		}
		out = append(out, url)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate visited urls: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// Close releases the underlying pool.
func (s *VisitedSet) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
