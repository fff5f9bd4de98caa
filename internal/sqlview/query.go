package sqlview

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"github.com/agentic-research/resmerge/internal/provider"
)

// TableName is the virtual table Open creates.
const TableName = "children"

var nextID atomic.Uint64

// DB is an in-memory SQLite database with TableName bound to a host.
type DB struct {
	*sql.DB
	mod *Module
	id  string
}

// Open creates an in-memory database whose TableName lists host's children.
func Open(ctx context.Context, host *provider.Host) (*DB, error) {
	mod, err := Register()
	if err != nil {
		return nil, err
	}
	id := fmt.Sprintf("host%d", nextID.Add(1))
	mod.RegisterHost(ctx, id, host)

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		mod.UnregisterHost(id)
		return nil, err
	}
	// Every connection of ":memory:" is its own database.
	db.SetMaxOpenConns(1)

	stmt := fmt.Sprintf("CREATE VIRTUAL TABLE %s USING %s(%s)", TableName, ModuleName, id)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		_ = db.Close()
		mod.UnregisterHost(id)
		return nil, fmt.Errorf("create %s: %w", TableName, err)
	}
	return &DB{DB: db, mod: mod, id: id}, nil
}

func (d *DB) Close() error {
	d.mod.UnregisterHost(d.id)
	return d.DB.Close()
}

// Result is a fully read query result.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Query runs query and reads every row.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	rows, err := d.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &Result{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		res.Rows = append(res.Rows, vals)
	}
	return res, rows.Err()
}
