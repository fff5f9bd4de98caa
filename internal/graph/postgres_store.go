package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSchema mirrors SQLiteSchema for a shared content repository.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS nodes (
	path TEXT PRIMARY KEY,
	parent TEXT NOT NULL,
	ord INTEGER NOT NULL,
	type TEXT NOT NULL DEFAULT '',
	super_type TEXT NOT NULL DEFAULT '',
	mtime BIGINT NOT NULL DEFAULT 0,
	props TEXT
);
CREATE INDEX IF NOT EXISTS idx_parent_ord ON nodes(parent, ord);
CREATE INDEX IF NOT EXISTS idx_type ON nodes(type);
CREATE INDEX IF NOT EXISTS idx_super_type ON nodes(super_type);

CREATE TABLE IF NOT EXISTS search_paths (
	pos INTEGER PRIMARY KEY,
	path TEXT NOT NULL
);
`

// PostgresStore implements Store on top of a pgx connection pool.
type PostgresStore struct {
	pool        *pgxpool.Pool
	searchPaths []string
}

// OpenPostgresStore connects to dsn and loads the search paths.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}

	rows, err := pool.Query(ctx, "SELECT path FROM search_paths ORDER BY pos")
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("query search paths: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			pool.Close()
			return nil, fmt.Errorf("scan search path: %w", err)
		}
		s.searchPaths = append(s.searchPaths, p)
	}
	if err := rows.Err(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("iterate search paths: %w", err)
	}
	return s, nil
}

// GetNode implements Store.
func (s *PostgresStore) GetNode(ctx context.Context, path string) (*Node, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+nodeColumns+" FROM nodes WHERE path = $1", cleanID(path))
	n, err := scanNode(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get node %s: %w", path, err)
	}
	return n, nil
}

// ListChildren implements Store.
func (s *PostgresStore) ListChildren(ctx context.Context, path string) ([]*Node, error) {
	id := cleanID(path)
	if _, err := s.GetNode(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, "SELECT "+nodeColumns+" FROM nodes WHERE parent = $1 AND path <> '/' ORDER BY ord", id)
	if err != nil {
		return nil, fmt.Errorf("list children %s: %w", path, err)
	}
	defer rows.Close()

	var children []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child of %s: %w", path, err)
		}
		children = append(children, n)
	}
	return children, rows.Err()
}

// NodesOfType implements TypeIndex, ordered by path.
func (s *PostgresStore) NodesOfType(ctx context.Context, t string) ([]*Node, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+nodeColumns+" FROM nodes WHERE type = $1 OR super_type = $1 ORDER BY path", t)
	if err != nil {
		return nil, fmt.Errorf("nodes of type %s: %w", t, err)
	}
	defer rows.Close()

	var out []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node of type %s: %w", t, err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// SearchPaths implements Store.
func (s *PostgresStore) SearchPaths() []string {
	return append([]string(nil), s.searchPaths...)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
