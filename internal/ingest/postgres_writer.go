package ingest

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentic-research/resmerge/internal/graph"
	"github.com/agentic-research/resmerge/internal/pathutil"
)

const upsertNodePg = `
INSERT INTO nodes (path, parent, ord, type, super_type, mtime, props)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (path) DO UPDATE SET
	type = excluded.type,
	super_type = excluded.super_type,
	mtime = excluded.mtime,
	props = excluded.props
`

// PostgresWriter imports content into a shared Postgres repository inside
// a single transaction. Nothing is visible to readers until Commit.
type PostgresWriter struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
	ord  map[string]int
}

// NewPostgresWriter connects to dsn, creates the schema and opens the
// import transaction. Existing rows are kept; re-imported paths are
// updated in place.
func NewPostgresWriter(ctx context.Context, dsn string) (*PostgresWriter, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, graph.PostgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("begin import: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO nodes (path, parent, ord) VALUES ('/', '', 0) ON CONFLICT DO NOTHING`); err != nil {
		_ = tx.Rollback(ctx)
		pool.Close()
		return nil, fmt.Errorf("create root: %w", err)
	}
	return &PostgresWriter{pool: pool, tx: tx, ord: make(map[string]int)}, nil
}

// AddNode implements IngestionTarget.
func (w *PostgresWriter) AddNode(ctx context.Context, n *graph.Node) error {
	id := pathutil.Normalize("/" + n.ID)
	if id == "/" {
		return nil
	}
	parent := pathutil.Parent(id)
	ord := w.ord[parent]
	w.ord[parent] = ord + 1

	props, err := graph.EncodeProperties(n.Properties)
	if err != nil {
		return fmt.Errorf("encode properties of %s: %w", id, err)
	}
	var mtime int64
	if !n.ModTime.IsZero() {
		mtime = n.ModTime.UnixNano()
	}
	var rawProps *string
	if props != "" {
		rawProps = &props
	}
	if _, err := w.tx.Exec(ctx, upsertNodePg, id, parent, ord, n.Type, n.SuperType, mtime, rawProps); err != nil {
		return fmt.Errorf("insert %s: %w", id, err)
	}
	return nil
}

// SetSearchPaths implements IngestionTarget.
func (w *PostgresWriter) SetSearchPaths(ctx context.Context, paths []string) error {
	batch := &pgx.Batch{}
	batch.Queue("DELETE FROM search_paths")
	for i, p := range paths {
		batch.Queue("INSERT INTO search_paths (pos, path) VALUES ($1, $2)", i, pathutil.Normalize(p))
	}
	if err := w.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write search paths: %w", err)
	}
	return nil
}

// Commit publishes the import and releases the pool.
func (w *PostgresWriter) Commit(ctx context.Context) error {
	defer w.pool.Close()
	if err := w.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

// Rollback discards the import and releases the pool.
func (w *PostgresWriter) Rollback(ctx context.Context) error {
	defer w.pool.Close()
	return w.tx.Rollback(ctx)
}

var _ IngestionTarget = (*PostgresWriter)(nil)
