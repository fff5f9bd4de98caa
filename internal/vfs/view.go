// Package vfs presents a Host as a read-only file tree: every resource is
// a directory, every property a file holding its value, and every
// directory carries MetadataFile describing the resource.
package vfs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/resmerge/internal/graph"
	"github.com/agentic-research/resmerge/internal/pathutil"
	"github.com/agentic-research/resmerge/internal/provider"
)

// MetadataFile is the per-directory resource description.
const MetadataFile = "_metadata.json"

var ErrNotDir = errors.New("not a directory")

// Entry is a directory or file of the view.
type Entry struct {
	Path     string
	Name     string
	Dir      bool
	Resource graph.Resource // the resource itself, or the owner of a file
	Content  []byte         // files only
	ModTime  time.Time
}

// Size returns the content length of a file, 0 for directories.
func (e *Entry) Size() int64 { return int64(len(e.Content)) }

// View resolves file system paths against a Host.
type View struct {
	host *provider.Host
}

// New returns a view of host.
func New(host *provider.Host) *View {
	return &View{host: host}
}

// Host returns the host the view resolves against.
func (v *View) Host() *provider.Host { return v.host }

// Lookup resolves path to a directory or file. Missing paths yield
// graph.ErrNotFound.
func (v *View) Lookup(ctx context.Context, path string) (*Entry, error) {
	path = pathutil.Normalize("/" + path)
	res, err := v.host.GetResource(ctx, path)
	if err != nil {
		return nil, err
	}
	if res != nil {
		return dirEntry(res), nil
	}

	parent := pathutil.Parent(path)
	if parent == "" {
		return nil, graph.ErrNotFound
	}
	owner, err := v.host.GetResource(ctx, parent)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, graph.ErrNotFound
	}
	name := pathutil.Name(path)
	if name == MetadataFile {
		return metadataEntry(owner), nil
	}
	vm := owner.ValueMap()
	if _, ok := vm[name]; !ok {
		return nil, graph.ErrNotFound
	}
	return propertyEntry(owner, vm, name), nil
}

// ReadDir lists child resources in merged order, then properties by
// name, then MetadataFile. A property named like a child resource is
// hidden by it.
func (v *View) ReadDir(ctx context.Context, path string) ([]*Entry, error) {
	e, err := v.Lookup(ctx, path)
	if err != nil {
		return nil, err
	}
	if !e.Dir {
		return nil, fmt.Errorf("%s: %w", path, ErrNotDir)
	}

	kids, err := v.host.ListChildren(ctx, e.Resource)
	if err != nil {
		return nil, err
	}
	entries := make([]*Entry, 0, len(kids)+1)
	taken := make(map[string]bool, len(kids))
	for _, k := range kids {
		entries = append(entries, dirEntry(k))
		taken[pathutil.Name(k.Path())] = true
	}

	vm := e.Resource.ValueMap()
	for _, key := range vm.Keys() {
		if taken[key] || key == MetadataFile || strings.Contains(key, "/") {
			continue
		}
		entries = append(entries, propertyEntry(e.Resource, vm, key))
	}

	return append(entries, metadataEntry(e.Resource)), nil
}

func dirEntry(res graph.Resource) *Entry {
	return &Entry{
		Path:     res.Path(),
		Name:     pathutil.Name(res.Path()),
		Dir:      true,
		Resource: res,
		ModTime:  res.Metadata().ModTime,
	}
}

func propertyEntry(owner graph.Resource, vm graph.ValueMap, key string) *Entry {
	return &Entry{
		Path:     pathutil.Join(owner.Path(), key),
		Name:     key,
		Resource: owner,
		Content:  []byte(vm.Format(key)),
		ModTime:  owner.Metadata().ModTime,
	}
}

func metadataEntry(owner graph.Resource) *Entry {
	return &Entry{
		Path:     pathutil.Join(owner.Path(), MetadataFile),
		Name:     MetadataFile,
		Resource: owner,
		Content:  DescribeJSON(owner),
		ModTime:  owner.Metadata().ModTime,
	}
}

// Describe returns the resource as a JSON-ready map: path, name, type,
// super type, resolution metadata and properties.
func Describe(res graph.Resource) map[string]any {
	md := res.Metadata()
	meta := map[string]any{
		"resolutionPath": md.ResolutionPath,
	}
	if md.Merged {
		meta["mergedResource"] = true
		mapped := make([]any, len(md.MappedResources))
		for i, p := range md.MappedResources {
			mapped[i] = p
		}
		meta["mappedResources"] = mapped
	}
	if !md.ModTime.IsZero() {
		meta["modTime"] = md.ModTime.UTC().Format(time.RFC3339)
	}

	d := map[string]any{
		"path":       res.Path(),
		"name":       pathutil.Name(res.Path()),
		"metadata":   meta,
		"properties": map[string]any(res.ValueMap()),
	}
	if t := res.ResourceType(); t != "" {
		d["resourceType"] = t
	}
	if st := res.ResourceSuperType(); st != "" {
		d["resourceSuperType"] = st
	}
	return d
}

// DescribeJSON renders Describe as indented JSON with sorted keys.
func DescribeJSON(res graph.Resource) []byte {
	return []byte(oj.JSON(Describe(res), &oj.Options{Indent: 2, Sort: true}) + "\n")
}
