// Package fs mounts the merged tree through FUSE (cgofuse). Resources are
// directories and properties are read-only files, as laid out by vfs.View.
package fs

import (
	"context"
	"errors"
	"time"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/agentic-research/resmerge/internal/ctxlog"
	"github.com/agentic-research/resmerge/internal/graph"
	"github.com/agentic-research/resmerge/internal/vfs"
)

// MergedFS implements the FUSE interface from cgofuse.
type MergedFS struct {
	fuse.FileSystemBase
	View      *vfs.View
	ctx       context.Context
	mountTime fuse.Timespec
}

func NewMergedFS(ctx context.Context, view *vfs.View) *MergedFS {
	return &MergedFS{
		View:      view,
		ctx:       ctx,
		mountTime: fuse.NewTimespec(time.Now()),
	}
}

// Open succeeds for files only. Content is re-read on every Read.
func (fs *MergedFS) Open(path string, flags int) (int, uint64) {
	if flags&(fuse.O_WRONLY|fuse.O_RDWR) != 0 {
		return -fuse.EROFS, 0
	}
	e, errc := fs.lookup(path)
	if errc != 0 {
		return errc, 0
	}
	if e.Dir {
		return -fuse.EISDIR, 0
	}
	return 0, 0
}

// Opendir succeeds for directories only.
func (fs *MergedFS) Opendir(path string) (int, uint64) {
	e, errc := fs.lookup(path)
	if errc != 0 {
		return errc, 0
	}
	if !e.Dir {
		return -fuse.ENOTDIR, 0
	}
	return 0, 0
}

// Getattr (Stat)
func (fs *MergedFS) Getattr(path string, stat *fuse.Stat_t, fh uint64) int {
	e, errc := fs.lookup(path)
	if errc != 0 {
		return errc
	}
	fs.fillStat(e, stat)
	return 0
}

// Readdir lists merged children, then property files, then the metadata file.
func (fs *MergedFS) Readdir(path string, fill func(name string, stat *fuse.Stat_t, ofst int64) bool, ofst int64, fh uint64) int {
	entries, err := fs.View.ReadDir(fs.ctx, path)
	if err != nil {
		return fs.errno("readdir", path, err)
	}

	fill(".", nil, 0)
	fill("..", nil, 0)
	for _, e := range entries {
		var st fuse.Stat_t
		fs.fillStat(e, &st)
		if !fill(e.Name, &st, 0) {
			break
		}
	}
	return 0
}

// Read (Cat file)
func (fs *MergedFS) Read(path string, buff []byte, ofst int64, fh uint64) int {
	e, errc := fs.lookup(path)
	if errc != 0 {
		return errc
	}
	if e.Dir {
		return -fuse.EISDIR
	}
	if ofst >= e.Size() {
		return 0
	}
	return copy(buff, e.Content[ofst:])
}

func (fs *MergedFS) lookup(path string) (*vfs.Entry, int) {
	e, err := fs.View.Lookup(fs.ctx, path)
	if err != nil {
		// An empty store still mounts as an empty root.
		if errors.Is(err, graph.ErrNotFound) && (path == "/" || path == "") {
			return &vfs.Entry{Path: "/", Dir: true}, 0
		}
		return nil, fs.errno("lookup", path, err)
	}
	return e, 0
}

func (fs *MergedFS) errno(op, path string, err error) int {
	switch {
	case errors.Is(err, graph.ErrNotFound):
		return -fuse.ENOENT
	case errors.Is(err, vfs.ErrNotDir):
		return -fuse.ENOTDIR
	}
	ctxlog.FromContext(fs.ctx).Error("fuse operation failed", "op", op, "path", path, "error", err)
	return -fuse.EIO
}

func (fs *MergedFS) fillStat(e *vfs.Entry, stat *fuse.Stat_t) {
	t := fs.mountTime
	if !e.ModTime.IsZero() {
		t = fuse.NewTimespec(e.ModTime)
	}
	stat.Atim = t
	stat.Mtim = t
	stat.Ctim = t
	stat.Birthtim = t

	if e.Dir {
		stat.Mode = fuse.S_IFDIR | 0o555
		stat.Nlink = 2
		return
	}
	stat.Mode = fuse.S_IFREG | 0o444
	stat.Nlink = 1
	stat.Size = e.Size()
}

// The mount is read-only.

func (fs *MergedFS) Mkdir(path string, mode uint32) int { return -fuse.EROFS }
func (fs *MergedFS) Rmdir(path string) int              { return -fuse.EROFS }
func (fs *MergedFS) Unlink(path string) int             { return -fuse.EROFS }
func (fs *MergedFS) Rename(oldpath, newpath string) int { return -fuse.EROFS }
func (fs *MergedFS) Truncate(path string, size int64, fh uint64) int {
	return -fuse.EROFS
}

func (fs *MergedFS) Create(path string, flags int, mode uint32) (int, uint64) {
	return -fuse.EROFS, ^uint64(0)
}

func (fs *MergedFS) Write(path string, buff []byte, ofst int64, fh uint64) int {
	return -fuse.EROFS
}
