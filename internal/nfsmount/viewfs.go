// Package nfsmount exports the merged tree over NFS. ViewFS adapts a
// vfs.View to billy.Filesystem for use with willscott/go-nfs.
package nfsmount

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"

	"github.com/agentic-research/resmerge/internal/graph"
	"github.com/agentic-research/resmerge/internal/pathutil"
	"github.com/agentic-research/resmerge/internal/vfs"
)

// ViewFS is a read-only billy.Filesystem over a vfs.View. Every call
// resolves against the live view; nothing is cached here.
type ViewFS struct {
	view      *vfs.View
	ctx       context.Context
	mountTime time.Time
}

// NewViewFS creates a filesystem backed by view. ctx carries the logger
// and cancels in-flight store reads when the export shuts down.
func NewViewFS(ctx context.Context, view *vfs.View) *ViewFS {
	return &ViewFS{
		view:      view,
		ctx:       ctx,
		mountTime: time.Now(),
	}
}

// --- billy.Basic ---

func (fs *ViewFS) Create(filename string) (billy.File, error) {
	return nil, readOnly("create", filename)
}

func (fs *ViewFS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *ViewFS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	filename = cleanPath(filename)
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		return nil, readOnly("open", filename)
	}

	e, err := fs.view.Lookup(fs.ctx, filename)
	if err != nil {
		return nil, pathError("open", filename, err)
	}
	if e.Dir {
		return nil, &os.PathError{Op: "open", Path: filename, Err: errors.New("is a directory")}
	}
	return newEntryFile(filename, e.Content), nil
}

func (fs *ViewFS) Stat(filename string) (os.FileInfo, error) {
	return fs.Lstat(filename)
}

func (fs *ViewFS) Rename(oldpath, newpath string) error {
	return readOnly("rename", oldpath)
}

func (fs *ViewFS) Remove(filename string) error {
	return readOnly("remove", filename)
}

func (fs *ViewFS) Join(elem ...string) string {
	return filepath.Join(elem...)
}

// --- billy.TempFile ---

func (fs *ViewFS) TempFile(dir, prefix string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

func (fs *ViewFS) ReadDir(path string) ([]os.FileInfo, error) {
	path = cleanPath(path)

	entries, err := fs.view.ReadDir(fs.ctx, path)
	if err != nil {
		return nil, pathError("readdir", path, err)
	}
	infos := make([]os.FileInfo, len(entries))
	for i, e := range entries {
		infos[i] = fs.entryInfo(e)
	}
	return infos, nil
}

func (fs *ViewFS) MkdirAll(filename string, perm os.FileMode) error {
	return readOnly("mkdir", filename)
}

// --- billy.Symlink ---

func (fs *ViewFS) Lstat(filename string) (os.FileInfo, error) {
	filename = cleanPath(filename)

	e, err := fs.view.Lookup(fs.ctx, filename)
	if err != nil {
		if filename == "/" && errors.Is(err, graph.ErrNotFound) {
			return &staticFileInfo{name: "/", mode: os.ModeDir | 0o555, modTime: fs.mountTime}, nil
		}
		return nil, pathError("lstat", filename, err)
	}
	info := fs.entryInfo(e)
	if filename == "/" {
		info.name = "/"
	}
	return info, nil
}

func (fs *ViewFS) Symlink(target, link string) error {
	return billy.ErrNotSupported
}

func (fs *ViewFS) Readlink(link string) (string, error) {
	return "", billy.ErrNotSupported
}

// --- billy.Chroot ---

func (fs *ViewFS) Chroot(path string) (billy.Filesystem, error) {
	return chroot.New(fs, path), nil
}

func (fs *ViewFS) Root() string {
	return "/"
}

// --- billy.Capable ---

func (fs *ViewFS) Capabilities() billy.Capability {
	return billy.ReadCapability | billy.SeekCapability
}

// --- internals ---

func (fs *ViewFS) entryInfo(e *vfs.Entry) *staticFileInfo {
	mode := os.FileMode(0o444)
	if e.Dir {
		mode = os.ModeDir | 0o555
	}
	modTime := e.ModTime
	if modTime.IsZero() {
		modTime = fs.mountTime
	}
	return &staticFileInfo{
		name:    e.Name,
		size:    e.Size(),
		mode:    mode,
		modTime: modTime,
	}
}

// cleanPath normalizes a billy path to a clean absolute path.
func cleanPath(path string) string {
	return pathutil.Normalize("/" + filepath.ToSlash(path))
}

// pathError maps view errors onto the os errors go-nfs understands.
func pathError(op, path string, err error) error {
	if errors.Is(err, graph.ErrNotFound) {
		err = os.ErrNotExist
	}
	return &os.PathError{Op: op, Path: path, Err: err}
}

func readOnly(op, path string) error {
	return &os.PathError{Op: op, Path: path, Err: graph.ErrReadOnly}
}

// staticFileInfo implements os.FileInfo with static values.
type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() any           { return nil }

// Compile-time interface checks.
var (
	_ billy.Filesystem = (*ViewFS)(nil)
	_ billy.Capable    = (*ViewFS)(nil)
)
