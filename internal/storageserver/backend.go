// Package storageserver implements the storage-server side of the
// distributed filesystem: the remote methods the naming server and
// clients invoke, backed by local file I/O. The on-disk layout and the
// create-then-rename write pattern generalize a key/value object store to
// path-addressed files with byte-range reads and writes.
package storageserver

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/nicolagi/dfs/internal/dfserr"
	"github.com/nicolagi/dfs/internal/dpath"
	"github.com/pkg/errors"
)

// DiskBackend stores file contents as regular files under a root
// directory, mirroring the namespace path structure.
type DiskBackend struct {
	root string
}

// NewDiskBackend returns a backend rooted at dir, which must already
// exist.
func NewDiskBackend(dir string) *DiskBackend {
	return &DiskBackend{root: dir}
}

func (b *DiskBackend) localPath(p dpath.Path) string {
	return p.ToFile(b.root)
}

// Size returns the length in bytes of the file at p.
func (b *DiskBackend) Size(p dpath.Path) (int64, error) {
	fi, err := os.Stat(b.localPath(p))
	if os.IsNotExist(err) {
		return 0, errors.Wrapf(dfserr.ErrNotFound, "%s", p)
	}
	if err != nil {
		return 0, errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	return fi.Size(), nil
}

// ReadAt returns up to length bytes starting at offset. Reading past EOF
// returns fewer bytes than requested, or zero bytes at exactly EOF; an
// offset beyond the file's size is a client error.
func (b *DiskBackend) ReadAt(p dpath.Path, offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, errors.Wrap(dfserr.ErrIllegalArgument, "negative offset or length")
	}
	f, err := os.Open(b.localPath(p))
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(dfserr.ErrNotFound, "%s", p)
	}
	if err != nil {
		return nil, errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	if offset > fi.Size() {
		return nil, errors.Wrapf(dfserr.ErrIllegalArgument, "offset %d beyond size %d", offset, fi.Size())
	}

	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	return buf[:n], nil
}

// WriteAt writes data at offset, extending the file if needed, and
// creating it if it does not exist yet.
func (b *DiskBackend) WriteAt(p dpath.Path, offset int64, data []byte) error {
	if offset < 0 {
		return errors.Wrap(dfserr.ErrIllegalArgument, "negative offset")
	}
	path := b.localPath(p)
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteAt(data, offset); err != nil {
		return errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	return nil
}

// Create creates an empty file at p, including any missing parent
// directories. It fails with dfserr.ErrExist if p already exists.
func (b *DiskBackend) Create(p dpath.Path) error {
	path := b.localPath(p)
	if _, err := os.Stat(path); err == nil {
		return errors.Wrapf(dfserr.ErrExist, "%s", p)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0666)
	if err != nil {
		return errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	return f.Close()
}

// Delete removes the file at p.
func (b *DiskBackend) Delete(p dpath.Path) error {
	err := os.Remove(b.localPath(p))
	if os.IsNotExist(err) {
		return errors.Wrapf(dfserr.ErrNotFound, "%s", p)
	}
	if err != nil {
		return errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	return nil
}

// Exists reports whether p names a file already stored locally.
func (b *DiskBackend) Exists(p dpath.Path) bool {
	_, err := os.Stat(b.localPath(p))
	return err == nil
}

// Replace atomically overwrites the file at p with contents, creating any
// missing parent directories. Used by Copy to replace a local copy with
// one fetched from a replication source, by writing to a temporary file
// and renaming it over the old one.
func (b *DiskBackend) Replace(p dpath.Path, contents []byte) error {
	path := b.localPath(p)
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	tmp := path + ".new"
	if err := ioutil.WriteFile(tmp, contents, 0666); err != nil {
		return errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	return nil
}

// List returns every file stored under the backend's root, relative to
// it, using dpath.List. Used at startup to build the file list a storage
// server offers at registration.
func (b *DiskBackend) List() ([]dpath.Path, error) {
	return dpath.List(b.root)
}
