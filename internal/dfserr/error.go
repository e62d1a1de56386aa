// Package dfserr declares the error kinds distinguished at the type level
// by the RMI and naming layers: transport failures, filesystem errors, and
// argument errors. Sentinel values are wrapped with github.com/pkg/errors at
// each service boundary so that errors.Is still resolves to the sentinel
// while retaining a stack trace for logging.
package dfserr

import "errors"

var (
	// ErrTransport marks a connect, read, write, serialization, or
	// protocol-shape failure. Every remote method is expected to declare
	// this in its failure set (internal/rmi rejects interfaces that don't).
	ErrTransport = errors.New("transport error")

	// ErrNotFound marks a lookup of a path that does not exist in the
	// namespace tree.
	ErrNotFound = errors.New("file not found")

	// ErrExist marks a create operation naming a path that already exists.
	ErrExist = errors.New("already exists")

	// ErrIsDirectory marks an operation that requires a file but was given
	// a directory.
	ErrIsDirectory = errors.New("is a directory")

	// ErrIsFile marks an operation that requires a directory but was given
	// a file.
	ErrIsFile = errors.New("is a file")

	// ErrInvalidPath marks a malformed path: empty components, or
	// components containing '/' or ':'.
	ErrInvalidPath = errors.New("invalid path")

	// ErrIllegalState marks an operation that violates a required
	// precondition not covered by the other kinds, e.g., double
	// registration of a storage server, or starting an already-started
	// skeleton.
	ErrIllegalState = errors.New("illegal state")

	// ErrIllegalArgument marks a client-detected argument error: negative
	// offset, nil buffer, out-of-range index, null parameter.
	ErrIllegalArgument = errors.New("illegal argument")

	// ErrBadInterface marks an attempt to construct a skeleton or stub
	// from an interface descriptor that has at least one method not
	// declaring ErrTransport in its failure set.
	ErrBadInterface = errors.New("bad interface: method does not declare transport error")
)
