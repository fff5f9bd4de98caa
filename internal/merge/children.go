package merge

import (
	"context"
	"errors"

	"github.com/agentic-research/resmerge/internal/ctxlog"
	"github.com/agentic-research/resmerge/internal/graph"
	"github.com/agentic-research/resmerge/internal/pathutil"
)

// MergeChildren folds the children of parent's backings into one ordered
// sibling list, lowest-priority backing first:
//
//   - hideChildren on a backing discards everything merged so far before
//     that backing's own children are added.
//   - hideResource on a child removes the sibling of that name; a later
//     backing may bring it back.
//   - orderBefore on a child moves its sibling right before the named
//     sibling, provided that sibling is already in the list.
//
// A child seen in several backings is one sibling carrying all of them,
// and keeps its first position unless orderBefore moves it.
func (m *Merger) MergeChildren(ctx context.Context, parent *Node) ([]*Node, error) {
	d := m.directives
	parentPath := parent.Path()
	siblings := newSiblingList()

	for _, backing := range parent.backings {
		if backing.Properties.Bool(d.HideChildren, false) {
			siblings.reset()
		}

		kids, err := m.store.ListChildren(ctx, backing.ID)
		if errors.Is(err, graph.ErrNotFound) {
			continue // backing vanished since the parent was merged
		}
		if err != nil {
			return nil, err
		}

		for _, c := range kids {
			rel := pathutil.Join(parent.relativePath, c.Name())
			p := pathutil.Join(parent.mergeRoot, rel)

			if c.Properties.Bool(d.HideResource, false) {
				siblings.remove(p)
				continue
			}

			child, existed := siblings.get(p)
			if !existed {
				child = m.newNode(parent.mergeRoot, rel, nil)
			}
			child.addBacking(c)

			target := -1
			if ob, ok := c.Properties.String(d.OrderBefore); ok && ob != child.Name() {
				target = siblings.indexOf(pathutil.Join(parentPath, ob))
			}

			switch {
			case target >= 0:
				siblings.moveBefore(child, existed, target)
			case !existed:
				siblings.append(child)
			}
		}
	}

	ctxlog.FromContext(ctx).Debug("merged children",
		"path", parentPath, "backings", len(parent.backings), "children", siblings.len())
	return siblings.nodes(), nil
}

// siblingList is an ordered list of merged nodes, unique by logical path.
// The map answers membership; positions are only searched when a sibling
// is removed or reordered.
type siblingList struct {
	order  []*Node
	byPath map[string]*Node
}

func newSiblingList() *siblingList {
	return &siblingList{byPath: make(map[string]*Node)}
}

func (l *siblingList) reset() {
	l.order = l.order[:0]
	clear(l.byPath)
}

func (l *siblingList) len() int { return len(l.order) }

func (l *siblingList) get(path string) (*Node, bool) {
	n, ok := l.byPath[path]
	return n, ok
}

func (l *siblingList) indexOf(path string) int {
	if _, ok := l.byPath[path]; !ok {
		return -1
	}
	for i, n := range l.order {
		if n.Path() == path {
			return i
		}
	}
	return -1
}

func (l *siblingList) append(n *Node) {
	l.order = append(l.order, n)
	l.byPath[n.Path()] = n
}

func (l *siblingList) remove(path string) {
	i := l.indexOf(path)
	if i < 0 {
		return
	}
	l.order = append(l.order[:i], l.order[i+1:]...)
	delete(l.byPath, path)
}

// moveBefore places n at index target, the current position of the
// sibling it must precede. An existing entry for n is moved, not copied.
func (l *siblingList) moveBefore(n *Node, existed bool, target int) {
	if existed {
		old := l.indexOf(n.Path())
		l.order = append(l.order[:old], l.order[old+1:]...)
		if old < target {
			target--
		}
	}
	l.order = append(l.order, nil)
	copy(l.order[target+1:], l.order[target:])
	l.order[target] = n
	l.byPath[n.Path()] = n
}

func (l *siblingList) nodes() []*Node {
	return append([]*Node(nil), l.order...)
}
