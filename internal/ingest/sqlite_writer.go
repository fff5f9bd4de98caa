package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/agentic-research/resmerge/internal/graph"
	"github.com/agentic-research/resmerge/internal/pathutil"
	_ "modernc.org/sqlite"
)

// upsertNode keeps the original ord of a re-added path so that the
// child order stays the order of first appearance.
const upsertNode = `
INSERT INTO nodes (path, parent, ord, type, super_type, mtime, props)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
	type = excluded.type,
	super_type = excluded.super_type,
	mtime = excluded.mtime,
	props = excluded.props
`

// SQLiteWriter writes imported content into a database that SQLiteStore
// can open. Inserts are batched into transactions.
type SQLiteWriter struct {
	db        *sql.DB
	tx        *sql.Tx
	stmtNode  *sql.Stmt
	batchSize int
	count     int
	ord       map[string]int
	mu        sync.Mutex
}

// NewSQLiteWriter opens or creates dbPath and initializes the schema.
func NewSQLiteWriter(dbPath string) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Performance tuning for bulk insert
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(graph.SQLiteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if _, err := db.Exec(`INSERT INTO nodes (path, parent, ord) VALUES ('/', '', 0) ON CONFLICT DO NOTHING`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create root: %w", err)
	}

	w := &SQLiteWriter{
		db:        db,
		batchSize: 10000,
		ord:       make(map[string]int),
	}
	if err := w.beginTx(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *SQLiteWriter) beginTx() error {
	var err error
	w.tx, err = w.db.Begin()
	if err != nil {
		return err
	}
	w.stmtNode, err = w.tx.Prepare(upsertNode)
	return err
}

func (w *SQLiteWriter) commitTx() error {
	if w.stmtNode != nil {
		_ = w.stmtNode.Close()
	}
	return w.tx.Commit()
}

// AddNode writes n below its parent, after the siblings written so far.
func (w *SQLiteWriter) AddNode(ctx context.Context, n *graph.Node) error {
	w.mu.Lock()
	defer w.mu.Unlock()

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
	var rawProps any
	if props != "" {
		rawProps = props
	}

	if _, err := w.stmtNode.ExecContext(ctx, id, parent, ord, n.Type, n.SuperType, mtime, rawProps); err != nil {
		return fmt.Errorf("insert %s: %w", id, err)
	}

	w.count++
	if w.count >= w.batchSize {
		if err := w.commitTx(); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		if err := w.beginTx(); err != nil {
			return fmt.Errorf("begin batch: %w", err)
		}
		w.count = 0
	}
	return nil
}

// SetSearchPaths replaces the stored search path list.
func (w *SQLiteWriter) SetSearchPaths(ctx context.Context, paths []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.tx.ExecContext(ctx, "DELETE FROM search_paths"); err != nil {
		return fmt.Errorf("clear search paths: %w", err)
	}
	for i, p := range paths {
		if _, err := w.tx.ExecContext(ctx, "INSERT INTO search_paths (pos, path) VALUES (?, ?)", i, pathutil.Normalize(p)); err != nil {
			return fmt.Errorf("insert search path %s: %w", p, err)
		}
	}
	return nil
}

// Close commits the pending batch and closes the database.
func (w *SQLiteWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.commitTx(); err != nil {
		_ = w.db.Close()
		return err
	}
	return w.db.Close()
}

// Interface compliance
var _ IngestionTarget = (*SQLiteWriter)(nil)
