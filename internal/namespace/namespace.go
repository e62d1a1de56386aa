// Package namespace implements the in-memory directory tree: a tree of
// directory and file nodes, where each file node carries the set of
// storage servers hosting it (each directory holds a name-keyed map of
// children), since this namespace only ever needs to know which
// servers host a file, not its bytes.
//
// A file node stores a list of storage-server identifiers rather than
// direct stub pointers: the actual (client stub, command stub) pair for
// each identifier lives in internal/naming's server registry, keeping
// namespace mutation free of any dependency on the RMI layer.
//
// namespace.Tree performs no locking of its own: every exported method
// assumes the caller already holds the appropriate internal/locktree
// locks for the paths it touches.
package namespace

import (
	"github.com/nicolagi/dfs/internal/dfserr"
	"github.com/nicolagi/dfs/internal/dpath"
	"github.com/pkg/errors"
)

type node struct {
	name     string
	isDir    bool
	children map[string]*node // only meaningful when isDir
	hosts    map[string]struct{} // only meaningful when !isDir
}

func newDirNode(name string) *node {
	return &node{name: name, isDir: true, children: make(map[string]*node)}
}

func newFileNode(name string, host string) *node {
	n := &node{name: name, hosts: make(map[string]struct{})}
	n.hosts[host] = struct{}{}
	return n
}

// Tree is the naming service's in-memory directory tree. The zero value is
// not usable; construct with New.
type Tree struct {
	root *node
}

// New returns a tree containing only the root directory.
func New() *Tree {
	return &Tree{root: newDirNode("")}
}

// walk follows p's components from the root, returning dfserr.ErrNotFound
// if any component is missing and dfserr.ErrIsFile if a non-final
// component names a file (files cannot have children).
func (t *Tree) walk(p dpath.Path) (*node, error) {
	n := t.root
	for _, c := range p.Components() {
		if !n.isDir {
			return nil, errors.Wrapf(dfserr.ErrIsFile, "walking through %q", n.name)
		}
		child, ok := n.children[c]
		if !ok {
			return nil, errors.Wrapf(dfserr.ErrNotFound, "%s", p)
		}
		n = child
	}
	return n, nil
}

// IsDirectory reports whether p names a directory. It fails with
// dfserr.ErrNotFound if p does not exist. The root is always a directory.
func (t *Tree) IsDirectory(p dpath.Path) (bool, error) {
	n, err := t.walk(p)
	if err != nil {
		return false, err
	}
	return n.isDir, nil
}

// List returns the names of p's children. It fails with dfserr.ErrIsFile
// if p names a file, or dfserr.ErrNotFound if p does not exist.
func (t *Tree) List(p dpath.Path) ([]string, error) {
	n, err := t.walk(p)
	if err != nil {
		return nil, err
	}
	if !n.isDir {
		return nil, errors.Wrapf(dfserr.ErrIsFile, "%s", p)
	}
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	return names, nil
}

// Hosts returns the set of storage-server identifiers hosting the file at
// p. It fails with dfserr.ErrIsDirectory if p names a directory, or
// dfserr.ErrNotFound if p does not exist.
func (t *Tree) Hosts(p dpath.Path) ([]string, error) {
	n, err := t.walk(p)
	if err != nil {
		return nil, err
	}
	if n.isDir {
		return nil, errors.Wrapf(dfserr.ErrIsDirectory, "%s", p)
	}
	out := make([]string, 0, len(n.hosts))
	for h := range n.hosts {
		out = append(out, h)
	}
	return out, nil
}

// parentDir looks up p's parent, requiring it to exist and be a
// directory. It does not check whether p's final component is already
// taken; AddFile and AddDirectory do that themselves.
func (t *Tree) parentDir(p dpath.Path) (*node, error) {
	if p.IsRoot() {
		return nil, errors.Wrap(dfserr.ErrIllegalArgument, "root has no parent")
	}
	parent, err := t.walk(p.Parent())
	if err != nil {
		return nil, err
	}
	if !parent.isDir {
		return nil, errors.Wrapf(dfserr.ErrIsFile, "%s", p.Parent())
	}
	return parent, nil
}

// AddFile inserts a new file node at p, hosted initially by host. It fails
// with dfserr.ErrNotFound if p's parent is missing, dfserr.ErrIsFile if
// the parent is not a directory, and dfserr.ErrExist if p already exists.
func (t *Tree) AddFile(p dpath.Path, host string) error {
	parent, err := t.parentDir(p)
	if err != nil {
		return err
	}
	name := p.Last()
	if _, exists := parent.children[name]; exists {
		return errors.Wrapf(dfserr.ErrExist, "%s", p)
	}
	parent.children[name] = newFileNode(name, host)
	return nil
}

// AddDirectory inserts a new empty directory node at p. Same failure modes
// as AddFile.
func (t *Tree) AddDirectory(p dpath.Path) error {
	parent, err := t.parentDir(p)
	if err != nil {
		return err
	}
	name := p.Last()
	if _, exists := parent.children[name]; exists {
		return errors.Wrapf(dfserr.ErrExist, "%s", p)
	}
	parent.children[name] = newDirNode(name)
	return nil
}

// EnsureDirectories creates every missing directory along p's chain,
// failing with dfserr.ErrIsFile if an existing, non-final component is a
// file. Used by the registration protocol to create intermediate
// directories for paths a storage server offers.
func (t *Tree) EnsureDirectories(p dpath.Path) error {
	n := t.root
	for _, c := range p.Components() {
		if !n.isDir {
			return errors.Wrapf(dfserr.ErrIsFile, "%q", n.name)
		}
		child, ok := n.children[c]
		if !ok {
			child = newDirNode(c)
			n.children[c] = child
		}
		n = child
	}
	return nil
}

// Exists reports whether p names any node.
func (t *Tree) Exists(p dpath.Path) bool {
	_, err := t.walk(p)
	return err == nil
}

// RemoveSubtree deletes the node at p and, recursively, all its
// descendants. It returns the (path, hosts) of every file removed, so the
// caller can tell each hosting storage server to delete its local copy.
// It fails with dfserr.ErrIllegalArgument if p is the root (the root
// cannot be deleted) and dfserr.ErrNotFound if p does not exist.
func (t *Tree) RemoveSubtree(p dpath.Path) ([]RemovedFile, error) {
	if p.IsRoot() {
		return nil, errors.Wrap(dfserr.ErrIllegalArgument, "cannot delete root")
	}
	parent, err := t.walk(p.Parent())
	if err != nil {
		return nil, err
	}
	name := p.Last()
	victim, ok := parent.children[name]
	if !ok {
		return nil, errors.Wrapf(dfserr.ErrNotFound, "%s", p)
	}
	var removed []RemovedFile
	collectFiles(p, victim, &removed)
	delete(parent.children, name)
	return removed, nil
}

// RemovedFile names a file deleted by RemoveSubtree and the servers that
// were hosting it.
type RemovedFile struct {
	Path  dpath.Path
	Hosts []string
}

func collectFiles(p dpath.Path, n *node, out *[]RemovedFile) {
	if !n.isDir {
		hosts := make([]string, 0, len(n.hosts))
		for h := range n.hosts {
			hosts = append(hosts, h)
		}
		*out = append(*out, RemovedFile{Path: p, Hosts: hosts})
		return
	}
	for name, child := range n.children {
		childPath, err := dpath.Join(p, name)
		if err != nil {
			continue
		}
		collectFiles(childPath, child, out)
	}
}

// AddHost adds host to the set hosting the file at p, used after a
// successful replication copy. It is a no-op if host is already present.
func (t *Tree) AddHost(p dpath.Path, host string) error {
	n, err := t.walk(p)
	if err != nil {
		return err
	}
	if n.isDir {
		return errors.Wrapf(dfserr.ErrIsDirectory, "%s", p)
	}
	n.hosts[host] = struct{}{}
	return nil
}

// SetHosts replaces the set of servers hosting the file at p. Used to
// apply write-invalidation: keep one host, drop the rest.
func (t *Tree) SetHosts(p dpath.Path, hosts []string) error {
	n, err := t.walk(p)
	if err != nil {
		return err
	}
	if n.isDir {
		return errors.Wrapf(dfserr.ErrIsDirectory, "%s", p)
	}
	n.hosts = make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		n.hosts[h] = struct{}{}
	}
	return nil
}
