// Package pathutil implements the slash-delimited path algebra shared by the
// physical stores, the merge engine and the mount layers.
package pathutil

import "strings"

// Normalize collapses repeated separators, drops "." segments, resolves ".."
// (never above the root) and strips a trailing slash. An absolute input stays
// absolute, a relative one stays relative, and "" stays "".
//
// path.Clean is not used because it maps "" to "." and keeps leading ".."
// segments of relative paths; the merge root's own relative path is "".
func Normalize(p string) string {
	if p == "" {
		return ""
	}
	abs := p[0] == '/'
	segs := strings.Split(p, "/")
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		switch s {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
			continue
		}
		out = append(out, s)
	}
	joined := strings.Join(out, "/")
	if abs {
		return "/" + joined
	}
	return joined
}

// Join joins the elements with "/" and normalizes the result.
// Join("/apps", "") == "/apps", Join("", "x") == "/x".
func Join(elem ...string) string {
	return Normalize(strings.Join(elem, "/"))
}

// Parent returns the logical parent of p, or "" for the root and for
// single-segment relative paths.
func Parent(p string) string {
	p = Normalize(p)
	if p == "" || p == "/" {
		return ""
	}
	i := strings.LastIndex(p, "/")
	switch {
	case i < 0:
		return ""
	case i == 0:
		return "/"
	}
	return p[:i]
}

// Name returns the last segment of p.
func Name(p string) string {
	p = Normalize(p)
	if p == "/" {
		return ""
	}
	return p[strings.LastIndex(p, "/")+1:]
}

// IsUnder reports whether p equals root or lies below it. Matching is
// segment-aware: "/appsx" is not under "/apps".
func IsUnder(p, root string) bool {
	_, ok := Relativize(p, root)
	return ok
}

// Relativize returns the remainder of p after root with the leading slash
// stripped. ok is false when p is not under root.
func Relativize(p, root string) (rel string, ok bool) {
	p = Normalize(p)
	root = Normalize(root)
	if root == "/" {
		if !strings.HasPrefix(p, "/") {
			return "", false
		}
		return p[1:], true
	}
	if p == root {
		return "", true
	}
	if strings.HasPrefix(p, root+"/") {
		return p[len(root)+1:], true
	}
	return "", false
}

// IsAbs reports whether p starts with a slash.
func IsAbs(p string) bool {
	return strings.HasPrefix(p, "/")
}
