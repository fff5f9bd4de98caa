package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ohler55/ojg/oj"
	_ "modernc.org/sqlite"
)

// SQLiteSchema is the table layout shared by SQLiteStore and the importer.
// parent + ord carry the native child order.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS nodes (
	path TEXT PRIMARY KEY,
	parent TEXT NOT NULL,
	ord INTEGER NOT NULL,
	type TEXT NOT NULL DEFAULT '',
	super_type TEXT NOT NULL DEFAULT '',
	mtime INTEGER NOT NULL DEFAULT 0,
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

const nodeColumns = "path, type, super_type, mtime, COALESCE(props, '')"

// SQLiteStore implements Store by querying a content database directly.
// The database is opened read-only; the merged view never writes.
type SQLiteStore struct {
	db          *sql.DB
	dbPath      string
	searchPaths []string
}

// OpenSQLiteStore opens dbPath read-only and loads its search paths.
func OpenSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(4)

	s := &SQLiteStore{db: db, dbPath: dbPath}
	if err := s.loadSearchPaths(); err != nil {
		_ = db.Close() // ignore error
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) loadSearchPaths() error {
	rows, err := s.db.Query("SELECT path FROM search_paths ORDER BY pos")
	if err != nil {
		return fmt.Errorf("query search paths: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return fmt.Errorf("scan search path: %w", err)
		}
		s.searchPaths = append(s.searchPaths, p)
	}
	return rows.Err()
}

// GetNode implements Store.
func (s *SQLiteStore) GetNode(ctx context.Context, path string) (*Node, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+nodeColumns+" FROM nodes WHERE path = ?", cleanID(path))
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get node %s: %w", path, err)
	}
	return n, nil
}

// ListChildren implements Store.
func (s *SQLiteStore) ListChildren(ctx context.Context, path string) ([]*Node, error) {
	id := cleanID(path)
	if _, err := s.GetNode(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+nodeColumns+" FROM nodes WHERE parent = ? AND path != '/' ORDER BY ord", id)
	if err != nil {
		return nil, fmt.Errorf("list children %s: %w", path, err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

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
func (s *SQLiteStore) NodesOfType(ctx context.Context, t string) ([]*Node, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+nodeColumns+" FROM nodes WHERE type = ? OR super_type = ? ORDER BY path", t, t)
	if err != nil {
		return nil, fmt.Errorf("nodes of type %s: %w", t, err)
	}
	defer func() { _ = rows.Close() }()

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
func (s *SQLiteStore) SearchPaths() []string {
	return append([]string(nil), s.searchPaths...)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// rowScanner is satisfied by *sql.Row, *sql.Rows and pgx.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*Node, error) {
	var (
		n     Node
		mtime int64
		props string
	)
	if err := row.Scan(&n.ID, &n.Type, &n.SuperType, &mtime, &props); err != nil {
		return nil, err
	}
	if mtime != 0 {
		n.ModTime = time.Unix(0, mtime)
	}
	vm, err := DecodeProperties(props)
	if err != nil {
		return nil, fmt.Errorf("decode properties of %s: %w", n.ID, err)
	}
	n.Properties = vm
	return &n, nil
}

// EncodeProperties serializes a property map for the props column.
// An empty map encodes to "".
func EncodeProperties(v ValueMap) (string, error) {
	if len(v) == 0 {
		return "", nil
	}
	b, err := oj.Marshal(map[string]any(v), &oj.Options{Sort: true})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeProperties parses a props column. Integers decode as int64 so that
// typed reads see the authored type.
func DecodeProperties(raw string) (ValueMap, error) {
	if raw == "" {
		return ValueMap{}, nil
	}
	v, err := oj.ParseString(raw)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("properties are %T, want object", v)
	}
	return ValueMap(m), nil
}
