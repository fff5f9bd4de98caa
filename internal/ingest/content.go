package ingest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/resmerge/internal/ctxlog"
	"github.com/agentic-research/resmerge/internal/graph"
	"github.com/agentic-research/resmerge/internal/pathutil"
)

// A content document lists the search paths and the tree below "/":
//
//	{
//	  "searchPaths": ["/apps", "/libs"],
//	  "tree": [
//	    {"name": "libs", "children": [
//	      {"name": "page", "type": "app/page", "superType": "base/page",
//	       "mtime": "2024-05-01T10:00:00Z",
//	       "properties": {"sling:hideChildren": true},
//	       "children": []}
//	    ]}
//	  ]
//	}
//
// Children are arrays so that their native order survives parsing.

// Stats counts what an import wrote.
type Stats struct {
	Nodes       int
	SearchPaths int
}

// LoadFile imports the content document at path. See Load.
func LoadFile(ctx context.Context, path, selector string, target IngestionTarget) (Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Stats{}, err
	}
	return Load(ctx, data, selector, target)
}

// Load parses data and imports every document selector matches, in order.
// An empty selector imports the whole input as one document.
func Load(ctx context.Context, data []byte, selector string, target IngestionTarget) (Stats, error) {
	var stats Stats
	root, err := oj.Parse(data)
	if err != nil {
		return stats, fmt.Errorf("parse content: %w", err)
	}
	docs, err := NewJsonWalker().Query(root, selector)
	if err != nil {
		return stats, err
	}
	if len(docs) == 0 {
		return stats, fmt.Errorf("selector %q matched nothing", selector)
	}

	for i, doc := range docs {
		m, ok := doc.(map[string]any)
		if !ok {
			return stats, fmt.Errorf("document %d is %T, want object", i, doc)
		}
		if err := loadDocument(ctx, m, target, &stats); err != nil {
			return stats, fmt.Errorf("document %d: %w", i, err)
		}
	}
	ctxlog.FromContext(ctx).Info("content imported",
		"documents", len(docs), "nodes", stats.Nodes, "search_paths", stats.SearchPaths)
	return stats, nil
}

func loadDocument(ctx context.Context, doc map[string]any, target IngestionTarget, stats *Stats) error {
	if raw, ok := doc["searchPaths"]; ok {
		paths, err := stringList(raw)
		if err != nil {
			return fmt.Errorf("searchPaths: %w", err)
		}
		for i, p := range paths {
			paths[i] = pathutil.Normalize("/" + p)
		}
		if err := target.SetSearchPaths(ctx, paths); err != nil {
			return fmt.Errorf("set search paths: %w", err)
		}
		stats.SearchPaths = len(paths)
	}

	entries, err := entryList(doc["tree"])
	if err != nil {
		return fmt.Errorf("tree: %w", err)
	}
	for _, e := range entries {
		if err := loadEntry(ctx, "/", e, target, stats); err != nil {
			return err
		}
	}
	return nil
}

func loadEntry(ctx context.Context, parent string, e map[string]any, target IngestionTarget, stats *Stats) error {
	name, _ := e["name"].(string)
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return fmt.Errorf("invalid entry name %q below %s", name, parent)
	}
	id := pathutil.Join(parent, name)

	n, err := entryNode(id, e)
	if err != nil {
		return fmt.Errorf("entry %s: %w", id, err)
	}
	if err := target.AddNode(ctx, n); err != nil {
		return fmt.Errorf("add %s: %w", id, err)
	}
	stats.Nodes++

	children, err := entryList(e["children"])
	if err != nil {
		return fmt.Errorf("entry %s children: %w", id, err)
	}
	for _, c := range children {
		if err := loadEntry(ctx, id, c, target, stats); err != nil {
			return err
		}
	}
	return nil
}

func entryNode(id string, e map[string]any) (*graph.Node, error) {
	n := &graph.Node{ID: id, Properties: graph.ValueMap{}}
	var ok bool
	if v, present := e["type"]; present {
		if n.Type, ok = v.(string); !ok {
			return nil, fmt.Errorf("type is %T, want string", v)
		}
	}
	if v, present := e["superType"]; present {
		if n.SuperType, ok = v.(string); !ok {
			return nil, fmt.Errorf("superType is %T, want string", v)
		}
	}
	if v, present := e["mtime"]; present {
		s, isString := v.(string)
		if !isString {
			return nil, fmt.Errorf("mtime is %T, want RFC 3339 string", v)
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("mtime: %w", err)
		}
		n.ModTime = t
	}
	if v, present := e["properties"]; present {
		props, isMap := v.(map[string]any)
		if !isMap {
			return nil, fmt.Errorf("properties are %T, want object", v)
		}
		for k, pv := range props {
			n.Properties[k] = pv
		}
	}
	return n, nil
}

func entryList(raw any) ([]map[string]any, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("got %T, want array", raw)
	}
	out := make([]map[string]any, len(list))
	for i, v := range list {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("element %d is %T, want object", i, v)
		}
		out[i] = m
	}
	return out, nil
}

func stringList(raw any) ([]string, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("got %T, want array of strings", raw)
	}
	out := make([]string, len(list))
	for i, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("element %d is %T, want string", i, v)
		}
		out[i] = s
	}
	return out, nil
}
