package nfsmount

import (
	"bytes"

	billy "github.com/go-git/go-billy/v5"

	"github.com/agentic-research/resmerge/internal/graph"
)

// entryFile is a read-only billy.File over content materialized at open
// time, so a reader sees one consistent value even if the store changes.
type entryFile struct {
	*bytes.Reader
	name string
}

func newEntryFile(name string, content []byte) *entryFile {
	return &entryFile{Reader: bytes.NewReader(content), name: name}
}

func (f *entryFile) Name() string { return f.name }

func (f *entryFile) Write([]byte) (int, error) { return 0, graph.ErrReadOnly }
func (f *entryFile) Truncate(int64) error      { return graph.ErrReadOnly }
func (f *entryFile) Lock() error               { return nil }
func (f *entryFile) Unlock() error             { return nil }
func (f *entryFile) Close() error              { return nil }

var _ billy.File = (*entryFile)(nil)
