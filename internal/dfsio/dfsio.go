// Package dfsio declares interfaces only for client-side streaming over
// DFS files: an io-flavored view over a naming.ClientStub +
// storageiface.ClientStub pair, so a caller can use DFS files with the
// same io.ReaderAt/io.WriterAt shapes the standard library expects,
// without this package committing to a particular buffering or caching
// strategy (left to cmd/dfs or any future client).
package dfsio

import (
	"io"

	"github.com/nicolagi/dfs/internal/dpath"
)

// Reader reads a DFS file's content at arbitrary offsets, fetching a
// fresh storage stub via a naming service's GetStorage(path, false) on
// construction. Implementations are not required to cache the stub
// across calls, since the naming service may choose a different host (or
// trigger replication) between reads.
type Reader interface {
	io.ReaderAt
	Path() dpath.Path
}

// Writer writes a DFS file's content at arbitrary offsets, obtained via a
// naming service's GetStorage(path, true), which invalidates every
// replica but one before the writer can proceed.
type Writer interface {
	io.WriterAt
	Path() dpath.Path
}

// Opener is anything able to hand out Readers and Writers for paths in a
// DFS namespace, the role a naming.ClientStub plays for cmd/dfs.
type Opener interface {
	OpenReader(p dpath.Path) (Reader, error)
	OpenWriter(p dpath.Path) (Writer, error)
}
