// Package dpath implements the immutable hierarchical path value used
// throughout the naming service and its remote interfaces, as a
// free-standing value type rather than something tied to a loaded node: a
// Path can be constructed, compared, and iterated without ever touching the
// namespace tree.
package dpath

import (
	"sort"
	"strings"

	"github.com/nicolagi/dfs/internal/dfserr"
	"github.com/pkg/errors"
)

// Path is an ordered, non-empty-component sequence identifying a location
// in the DFS namespace. The zero value is the root.
//
// Path is immutable: every method that would mutate it instead returns a
// new value. Equality is structural (compare via Equals or by comparing
// String() forms, which Path guarantees are canonical).
type Path struct {
	components []string
}

// Root is the empty path, "/".
var Root = Path{}

// New parses the slash-separated string form of a path, e.g. "/a/b/c".
// A leading slash is optional; a trailing slash is ignored. Components
// must be non-empty and must not contain '/' or ':'.
func New(s string) (Path, error) {
	s = strings.Trim(s, "/")
	if s == "" {
		return Root, nil
	}
	parts := strings.Split(s, "/")
	for _, p := range parts {
		if err := validateComponent(p); err != nil {
			return Path{}, err
		}
	}
	return Path{components: parts}, nil
}

// MustNew is New, panicking on error. Intended for tests and literal paths.
func MustNew(s string) Path {
	p, err := New(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Join appends a single component to parent, returning a new Path.
func Join(parent Path, component string) (Path, error) {
	if err := validateComponent(component); err != nil {
		return Path{}, err
	}
	out := make([]string, len(parent.components)+1)
	copy(out, parent.components)
	out[len(parent.components)] = component
	return Path{components: out}, nil
}

func validateComponent(s string) error {
	if s == "" {
		return errors.Wrap(dfserr.ErrInvalidPath, "empty component")
	}
	if strings.ContainsAny(s, "/:") {
		return errors.Wrapf(dfserr.ErrInvalidPath, "component %q contains '/' or ':'", s)
	}
	return nil
}

// IsRoot reports whether p is the root path.
func (p Path) IsRoot() bool {
	return len(p.components) == 0
}

// Parent returns the parent of p. Calling Parent on the root path returns
// the root path unchanged.
func (p Path) Parent() Path {
	if p.IsRoot() {
		return p
	}
	return Path{components: p.components[:len(p.components)-1]}
}

// Last returns the final component of p. It panics if called on the root
// path; callers should check IsRoot first.
func (p Path) Last() string {
	if p.IsRoot() {
		panic("dpath: Last called on root path")
	}
	return p.components[len(p.components)-1]
}

// Components returns the path's components root-to-leaf. The returned
// slice must not be mutated.
func (p Path) Components() []string {
	return p.components
}

// IsSubpath reports whether p is a subpath of other, i.e., other's
// components are a prefix of p's (so other is an ancestor of p, or equal
// to it).
func (p Path) IsSubpath(other Path) bool {
	if len(other.components) > len(p.components) {
		return false
	}
	for i, c := range other.components {
		if p.components[i] != c {
			return false
		}
	}
	return true
}

// Ancestors returns the chain of ancestors of p in root-to-leaf order,
// root included, p itself excluded. The root path returns an empty slice.
func (p Path) Ancestors() []Path {
	out := make([]Path, 0, len(p.components))
	for i := range p.components {
		out = append(out, Path{components: p.components[:i]})
	}
	return out
}

// String returns the canonical slash-separated form, "/" for the root.
//
// Ordering note: String deliberately does not distinguish a component
// boundary from any other '/' — two distinct paths that share a string
// prefix up to a component boundary compare adjacently regardless of
// component count. This preserves the source implementation's exact
// lexicographic behavior (see Compare) rather than a component-wise order:
// "/a" < "/a.txt" < "/a/b" < "/b".
func (p Path) String() string {
	if p.IsRoot() {
		return "/"
	}
	return "/" + strings.Join(p.components, "/")
}

// Equals reports structural equality.
func (p Path) Equals(other Path) bool {
	return p.String() == other.String()
}

// Compare implements a total order on paths by plain lexicographic
// comparison of the string form. Since components cannot contain '/', this
// yields the "ancestor-near-descendant" property required so that multiple
// locks acquired in ascending Compare order never deadlock (see
// internal/locktree): an ancestor's string form is always a prefix of, and
// therefore sorts before, any of its descendants'.
func (p Path) Compare(other Path) int {
	return strings.Compare(p.String(), other.String())
}

// Less reports whether p sorts before other under Compare.
func (p Path) Less(other Path) bool {
	return p.Compare(other) < 0
}

// SortPaths sorts paths in ascending Compare order in place. Callers that
// must acquire locks on several independent paths are required to do so in
// this order (see internal/locktree's package doc).
func SortPaths(paths []Path) {
	sort.Slice(paths, func(i, j int) bool { return paths[i].Less(paths[j]) })
}

// Parse splits a CLI-style "host:path" or bare "path" argument into its
// host and path parts, matching the `dfs parse host|path` command of §6.
// An argument with no ':' has an empty host.
func Parse(arg string) (host string, rest string) {
	if i := strings.IndexByte(arg, ':'); i >= 0 {
		return arg[:i], arg[i+1:]
	}
	return "", arg
}
