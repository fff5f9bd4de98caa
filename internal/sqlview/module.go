// Package sqlview exposes a Host to SQL as a SQLite virtual table:
//
//	CREATE VIRTUAL TABLE children USING resmerge_children(<host id>);
//	SELECT name, type FROM children WHERE parent = '/virtual/page' ORDER BY ord;
//
// Each row is one child of parent in merged order. Without a parent
// constraint the table walks the whole tree below "/".
package sqlview

import (
	"context"
	"fmt"
	"sync"

	"modernc.org/sqlite/vtab"

	"github.com/agentic-research/resmerge/internal/graph"
	"github.com/agentic-research/resmerge/internal/pathutil"
	"github.com/agentic-research/resmerge/internal/provider"
)

// ModuleName is the name used in CREATE VIRTUAL TABLE ... USING.
const ModuleName = "resmerge_children"

// Columns of the virtual table, in declaration order.
const (
	colParent = iota
	colName
	colPath
	colType
	colSuperType
	colOrd
	colMerged
)

const schema = `CREATE TABLE x(
	parent TEXT,
	name TEXT,
	path TEXT,
	type TEXT,
	super_type TEXT,
	ord INTEGER,
	merged INTEGER
)`

// maxScanDepth bounds the unconstrained walk. A mount whose base paths
// include an ancestor of the mount would otherwise never end.
const maxScanDepth = 64

// singleton holds the one Module registered with the SQLite driver.
var (
	once      sync.Once
	singleton *Module
	initErr   error
)

type registration struct {
	ctx  context.Context
	host *provider.Host
}

// Module implements vtab.Module. modernc.org/sqlite registers modules
// globally, so hosts are looked up by the ID given to CREATE VIRTUAL TABLE.
type Module struct {
	mu    sync.RWMutex
	hosts map[string]registration
}

// Register registers the module with the SQLite driver. Only the first call
// registers; later calls return the same Module.
func Register() (*Module, error) {
	once.Do(func() {
		singleton = &Module{hosts: make(map[string]registration)}
		if err := vtab.RegisterModule(nil, ModuleName, singleton); err != nil {
			initErr = fmt.Errorf("sqlview: register module: %w", err)
			singleton = nil
		}
	})
	return singleton, initErr
}

// RegisterHost makes host available under id. Store reads made by queries
// use ctx.
func (m *Module) RegisterHost(ctx context.Context, id string, host *provider.Host) {
	m.mu.Lock()
	m.hosts[id] = registration{ctx: ctx, host: host}
	m.mu.Unlock()
}

func (m *Module) UnregisterHost(id string) {
	m.mu.Lock()
	delete(m.hosts, id)
	m.mu.Unlock()
}

func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	// args: module name, database name, table name, then the arguments.
	if len(args) < 4 {
		return nil, fmt.Errorf("%s: missing host ID argument (expected USING %s(id))", ModuleName, ModuleName)
	}
	id := args[3]

	m.mu.RLock()
	reg, ok := m.hosts[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: unknown host ID %q", ModuleName, id)
	}

	if err := ctx.Declare(schema); err != nil {
		return nil, err
	}
	return &childrenTable{reg: reg}, nil
}

func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.Create(ctx, args)
}

type childrenTable struct {
	reg registration
}

func (t *childrenTable) BestIndex(info *vtab.IndexInfo) error {
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable || c.Column != colParent || c.Op != vtab.OpEQ {
			continue
		}
		c.ArgIndex = 0
		c.Omit = true
		info.IdxNum = 1
		info.EstimatedCost = 10
		info.EstimatedRows = 10
		return nil
	}
	// Full walk.
	info.IdxNum = 0
	info.EstimatedCost = 1e6
	info.EstimatedRows = 1e6
	return nil
}

func (t *childrenTable) Open() (vtab.Cursor, error) {
	return &childrenCursor{table: t}, nil
}

func (t *childrenTable) Disconnect() error { return nil }
func (t *childrenTable) Destroy() error    { return nil }

type childRow struct {
	parent string
	res    graph.Resource
	ord    int64
}

type childrenCursor struct {
	table *childrenTable
	rows  []childRow
	pos   int
}

func (c *childrenCursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	c.rows = c.rows[:0]
	c.pos = 0

	if idxNum == 1 {
		parent, ok := vals[0].(string)
		if !ok {
			return nil
		}
		return c.load(pathutil.Normalize("/"+parent), 0, false)
	}
	return c.load("/", 0, true)
}

// load appends the children of parent, and their subtrees when deep.
func (c *childrenCursor) load(parent string, depth int, deep bool) error {
	ctx, host := c.table.reg.ctx, c.table.reg.host

	res, err := host.GetResource(ctx, parent)
	if err != nil {
		return fmt.Errorf("%s: resolve %s: %w", ModuleName, parent, err)
	}
	if res == nil {
		return nil
	}
	kids, err := host.ListChildren(ctx, res)
	if err != nil {
		return fmt.Errorf("%s: list %s: %w", ModuleName, parent, err)
	}
	for i, k := range kids {
		c.rows = append(c.rows, childRow{parent: res.Path(), res: k, ord: int64(i)})
		if deep && depth < maxScanDepth {
			if err := c.load(k.Path(), depth+1, true); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *childrenCursor) Next() error {
	c.pos++
	return nil
}

func (c *childrenCursor) Eof() bool {
	return c.pos >= len(c.rows)
}

func (c *childrenCursor) Column(col int) (vtab.Value, error) {
	if c.pos >= len(c.rows) {
		return nil, nil
	}
	row := c.rows[c.pos]
	switch col {
	case colParent:
		return row.parent, nil
	case colName:
		return pathutil.Name(row.res.Path()), nil
	case colPath:
		return row.res.Path(), nil
	case colType:
		return row.res.ResourceType(), nil
	case colSuperType:
		return row.res.ResourceSuperType(), nil
	case colOrd:
		return row.ord, nil
	case colMerged:
		if row.res.Metadata().Merged {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, nil
	}
}

func (c *childrenCursor) Rowid() (int64, error) {
	return int64(c.pos), nil
}

func (c *childrenCursor) Close() error {
	c.rows = nil
	return nil
}
