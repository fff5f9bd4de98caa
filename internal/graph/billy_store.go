package graph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/resmerge/internal/pathutil"
)

// ContentFile is the per-directory descriptor read by BillyStore.
const ContentFile = ".content.json"

// BillyStore exposes a directory tree as a content repository. Every
// directory is a node; its ContentFile (optional) carries the type, super
// type, properties and child order:
//
//	{"type": "app/page", "superType": "base/page",
//	 "properties": {"title": "Home"}, "order": ["b", "a"]}
//
// Children listed in "order" come first, the rest follow by name.
type BillyStore struct {
	fs          billy.Filesystem
	searchPaths []string
	cache       *lru.Cache[string, *contentDesc]
}

type contentDesc struct {
	typ       string
	superType string
	props     ValueMap
	order     []string
}

// NewBillyStore wraps fs. Parsed descriptors are cached by path, size and
// modification time, so edits on disk are picked up on the next read.
func NewBillyStore(fs billy.Filesystem, searchPaths []string) (*BillyStore, error) {
	cache, err := lru.New[string, *contentDesc](1024)
	if err != nil {
		return nil, fmt.Errorf("create descriptor cache: %w", err)
	}
	return &BillyStore{
		fs:          fs,
		searchPaths: append([]string(nil), searchPaths...),
		cache:       cache,
	}, nil
}

// GetNode implements Store.
func (s *BillyStore) GetNode(ctx context.Context, path string) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := cleanID(path)
	info, err := s.fs.Stat(id)
	if err != nil && id == "/" && errors.Is(err, os.ErrNotExist) {
		return &Node{ID: "/", Properties: ValueMap{}}, nil
	}
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat %s: %w", id, err)
	}
	if !info.IsDir() {
		return nil, ErrNotFound
	}
	desc, err := s.descriptor(id)
	if err != nil {
		return nil, err
	}
	return &Node{
		ID:         id,
		Type:       desc.typ,
		SuperType:  desc.superType,
		ModTime:    info.ModTime(),
		Properties: desc.props.Clone(),
	}, nil
}

// ListChildren implements Store.
func (s *BillyStore) ListChildren(ctx context.Context, path string) ([]*Node, error) {
	parent, err := s.GetNode(ctx, path)
	if err != nil {
		return nil, err
	}
	infos, err := s.fs.ReadDir(parent.ID)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", parent.ID, err)
	}

	var names []string
	for _, fi := range infos {
		if fi.IsDir() {
			names = append(names, fi.Name())
		}
	}
	desc, err := s.descriptor(parent.ID)
	if err != nil {
		return nil, err
	}
	names = applyOrder(names, desc.order)

	children := make([]*Node, 0, len(names))
	for _, name := range names {
		c, err := s.GetNode(ctx, pathutil.Join(parent.ID, name))
		if errors.Is(err, ErrNotFound) {
			continue // removed between ReadDir and Stat
		}
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	return children, nil
}

// SearchPaths implements Store.
func (s *BillyStore) SearchPaths() []string {
	return append([]string(nil), s.searchPaths...)
}

func (s *BillyStore) descriptor(dir string) (*contentDesc, error) {
	file := pathutil.Join(dir, ContentFile)
	info, err := s.fs.Stat(file)
	if errors.Is(err, os.ErrNotExist) {
		return &contentDesc{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", file, err)
	}

	key := fmt.Sprintf("%s@%d:%d", file, info.ModTime().UnixNano(), info.Size())
	if d, ok := s.cache.Get(key); ok {
		return d, nil
	}

	data, err := util.ReadFile(s.fs, file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	d, err := parseDescriptor(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}
	s.cache.Add(key, d)
	return d, nil
}

func parseDescriptor(data []byte) (*contentDesc, error) {
	v, err := oj.Parse(data)
	if err != nil {
		return nil, err
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("descriptor is %T, want object", v)
	}
	vm := ValueMap(raw)
	d := &contentDesc{order: vm.Strings("order")}
	d.typ, _ = vm.String("type")
	d.superType, _ = vm.String("superType")
	if props, ok := raw["properties"].(map[string]any); ok {
		d.props = ValueMap(props)
	}
	return d, nil
}

// applyOrder puts the names listed in order first (in that order, skipping
// unknown ones) followed by the remaining names sorted.
func applyOrder(names, order []string) []string {
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}
	out := make([]string, 0, len(names))
	for _, n := range order {
		if present[n] {
			out = append(out, n)
			delete(present, n)
		}
	}
	var rest []string
	for _, n := range names {
		if present[n] {
			rest = append(rest, n)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
