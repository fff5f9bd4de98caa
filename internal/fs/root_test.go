package fs

import (
	"context"
	"strings"
	"testing"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/agentic-research/resmerge/internal/graph"
	"github.com/agentic-research/resmerge/internal/provider"
	"github.com/agentic-research/resmerge/internal/vfs"
)

// newTestFS mounts a virtual merge over /apps and /libs:
//
//	/libs/page  {title: Libs, severity: CRITICAL}  children: a
//	/apps/page  {title: Apps}                      children: b
func newTestFS(t *testing.T) *MergedFS {
	t.Helper()
	store := graph.NewMemoryStore()
	for _, n := range []*graph.Node{
		{ID: "/libs"},
		{ID: "/libs/page", Properties: graph.ValueMap{"title": "Libs", "severity": "CRITICAL"}},
		{ID: "/libs/page/a"},
		{ID: "/apps"},
		{ID: "/apps/page", Properties: graph.ValueMap{"title": "Apps"}},
		{ID: "/apps/page/b"},
	} {
		store.AddNode(n)
	}
	store.SetSearchPaths([]string{"/apps", "/libs"})

	host := provider.NewHost(store)
	if _, err := host.MountVirtual(""); err != nil {
		t.Fatalf("MountVirtual: %v", err)
	}
	return NewMergedFS(context.Background(), vfs.New(host))
}

func TestMergedFS_Open(t *testing.T) {
	mfs := newTestFS(t)

	tests := []struct {
		name    string
		path    string
		flags   int
		wantErr int
	}{
		{name: "open property file", path: "/virtual/page/title", wantErr: 0},
		{name: "open metadata file", path: "/virtual/page/" + vfs.MetadataFile, wantErr: 0},
		{name: "open physical property", path: "/libs/page/severity", wantErr: 0},
		{name: "open merged directory", path: "/virtual/page", wantErr: -fuse.EISDIR},
		{name: "open missing path", path: "/virtual/page/nope", wantErr: -fuse.ENOENT},
		{name: "open for write", path: "/virtual/page/title", flags: fuse.O_RDWR, wantErr: -fuse.EROFS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errCode, _ := mfs.Open(tt.path, tt.flags)
			if errCode != tt.wantErr {
				t.Errorf("Open(%q) = %v, want %v", tt.path, errCode, tt.wantErr)
			}
		})
	}
}

func TestMergedFS_Getattr(t *testing.T) {
	mfs := newTestFS(t)

	tests := []struct {
		name     string
		path     string
		wantErr  int
		wantMode uint32
		wantSize int64
	}{
		{name: "root", path: "/", wantMode: fuse.S_IFDIR | 0o555},
		{name: "mount root", path: "/virtual", wantMode: fuse.S_IFDIR | 0o555},
		{name: "merged resource", path: "/virtual/page", wantMode: fuse.S_IFDIR | 0o555},
		{name: "merged child", path: "/virtual/page/a", wantMode: fuse.S_IFDIR | 0o555},
		{name: "property from last backing", path: "/virtual/page/title", wantMode: fuse.S_IFREG | 0o444, wantSize: int64(len("Apps"))},
		{name: "property from first backing", path: "/virtual/page/severity", wantMode: fuse.S_IFREG | 0o444, wantSize: int64(len("CRITICAL"))},
		{name: "missing", path: "/virtual/missing", wantErr: -fuse.ENOENT},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stat fuse.Stat_t
			errCode := mfs.Getattr(tt.path, &stat, 0)
			if errCode != tt.wantErr {
				t.Fatalf("Getattr(%q) = %v, want %v", tt.path, errCode, tt.wantErr)
			}
			if tt.wantErr != 0 {
				return
			}
			if stat.Mode != tt.wantMode {
				t.Errorf("Mode = %o, want %o", stat.Mode, tt.wantMode)
			}
			if stat.Size != tt.wantSize {
				t.Errorf("Size = %d, want %d", stat.Size, tt.wantSize)
			}
		})
	}
}

func TestMergedFS_Readdir(t *testing.T) {
	mfs := newTestFS(t)

	tests := []struct {
		name string
		path string
		want []string
	}{
		{
			name: "root lists physical tops and the mount",
			path: "/",
			want: []string{".", "..", "libs", "apps", "virtual", vfs.MetadataFile},
		},
		{
			name: "merged children then properties",
			path: "/virtual/page",
			want: []string{".", "..", "a", "b", "severity", "title", vfs.MetadataFile},
		},
		{
			name: "physical resource is not merged",
			path: "/apps/page",
			want: []string{".", "..", "b", "title", vfs.MetadataFile},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var entries []string
			fill := func(name string, stat *fuse.Stat_t, ofst int64) bool {
				entries = append(entries, name)
				return true
			}
			if errCode := mfs.Readdir(tt.path, fill, 0, 0); errCode != 0 {
				t.Fatalf("Readdir(%q) errCode = %v, want 0", tt.path, errCode)
			}
			if len(entries) != len(tt.want) {
				t.Fatalf("got %v, want %v", entries, tt.want)
			}
			for i, w := range tt.want {
				if entries[i] != w {
					t.Errorf("entry[%d] = %q, want %q", i, entries[i], w)
				}
			}
		})
	}
}

func TestMergedFS_Readdir_BufferFull(t *testing.T) {
	mfs := newTestFS(t)

	var entries []string
	fill := func(name string, stat *fuse.Stat_t, ofst int64) bool {
		entries = append(entries, name)
		return len(entries) < 3
	}

	if errCode := mfs.Readdir("/virtual/page", fill, 0, 0); errCode != 0 {
		t.Fatalf("Readdir errCode = %v, want 0", errCode)
	}
	if len(entries) != 3 || entries[2] != "a" {
		t.Fatalf("entries = %v, want [. .. a]", entries)
	}
}

func TestMergedFS_Readdir_Errors(t *testing.T) {
	mfs := newTestFS(t)
	fill := func(name string, stat *fuse.Stat_t, ofst int64) bool { return true }

	if errCode := mfs.Readdir("/does-not-exist", fill, 0, 0); errCode != -fuse.ENOENT {
		t.Errorf("Readdir(nonexistent) = %v, want ENOENT", errCode)
	}
	if errCode := mfs.Readdir("/virtual/page/title", fill, 0, 0); errCode != -fuse.ENOTDIR {
		t.Errorf("Readdir(file) = %v, want ENOTDIR", errCode)
	}
}

func TestMergedFS_Opendir_Errors(t *testing.T) {
	mfs := newTestFS(t)

	errCode, _ := mfs.Opendir("/does-not-exist")
	if errCode != -fuse.ENOENT {
		t.Errorf("Opendir(nonexistent) = %v, want ENOENT", errCode)
	}

	errCode, _ = mfs.Opendir("/virtual/page/severity")
	if errCode != -fuse.ENOTDIR {
		t.Errorf("Opendir(file) = %v, want ENOTDIR", errCode)
	}

	errCode, _ = mfs.Opendir("/virtual/page")
	if errCode != 0 {
		t.Errorf("Opendir(dir) = %v, want 0", errCode)
	}
}

func TestMergedFS_Read(t *testing.T) {
	mfs := newTestFS(t)

	tests := []struct {
		name     string
		path     string
		offset   int64
		buffSize int
		wantN    int
		wantData string
	}{
		{
			name:     "read overlaid property",
			path:     "/virtual/page/title",
			buffSize: 100,
			wantN:    len("Apps"),
			wantData: "Apps",
		},
		{
			name:     "read inherited property",
			path:     "/virtual/page/severity",
			buffSize: 100,
			wantN:    len("CRITICAL"),
			wantData: "CRITICAL",
		},
		{
			name:     "read with offset",
			path:     "/virtual/page/severity",
			offset:   4,
			buffSize: 100,
			wantN:    len("ICAL"),
			wantData: "ICAL",
		},
		{
			name:     "short buffer",
			path:     "/virtual/page/severity",
			buffSize: 4,
			wantN:    4,
			wantData: "CRIT",
		},
		{
			name:     "read past end of file",
			path:     "/virtual/page/severity",
			offset:   100,
			buffSize: 100,
		},
		{
			name:     "read non-existent path",
			path:     "/does-not-exist",
			buffSize: 100,
			wantN:    -fuse.ENOENT,
		},
		{
			name:     "read a directory returns EISDIR",
			path:     "/virtual/page",
			buffSize: 100,
			wantN:    -fuse.EISDIR,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buff := make([]byte, tt.buffSize)
			n := mfs.Read(tt.path, buff, tt.offset, 0)

			if n != tt.wantN {
				t.Errorf("Read() n = %v, want %v", n, tt.wantN)
			}
			if n > 0 && tt.wantData != "" {
				if got := string(buff[:n]); got != tt.wantData {
					t.Errorf("Read() data = %q, want %q", got, tt.wantData)
				}
			}
		})
	}
}

func TestMergedFS_ReadMetadata(t *testing.T) {
	mfs := newTestFS(t)

	buff := make([]byte, 4096)
	n := mfs.Read("/virtual/page/"+vfs.MetadataFile, buff, 0, 0)
	if n <= 0 {
		t.Fatalf("Read() n = %v, want > 0", n)
	}
	got := string(buff[:n])
	for _, want := range []string{"mergedResource", "/apps/page", "/libs/page"} {
		if !strings.Contains(got, want) {
			t.Errorf("metadata missing %q:\n%s", want, got)
		}
	}
}

func TestMergedFS_WritesRejected(t *testing.T) {
	mfs := newTestFS(t)

	if errCode := mfs.Mkdir("/virtual/new", 0o755); errCode != -fuse.EROFS {
		t.Errorf("Mkdir = %v, want EROFS", errCode)
	}
	if errCode := mfs.Unlink("/virtual/page/title"); errCode != -fuse.EROFS {
		t.Errorf("Unlink = %v, want EROFS", errCode)
	}
	if errCode, _ := mfs.Create("/virtual/page/new", 0, 0o644); errCode != -fuse.EROFS {
		t.Errorf("Create = %v, want EROFS", errCode)
	}
	if n := mfs.Write("/virtual/page/title", []byte("x"), 0, 0); n != -fuse.EROFS {
		t.Errorf("Write = %v, want EROFS", n)
	}
}
