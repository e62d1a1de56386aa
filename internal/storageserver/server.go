package storageserver

import (
	"github.com/nicolagi/dfs/internal/dfserr"
	"github.com/nicolagi/dfs/internal/dpath"
	"github.com/nicolagi/dfs/internal/rmi"
	"github.com/nicolagi/dfs/internal/storageiface"
	"github.com/pkg/errors"
)

// Backend is the local storage primitive a storage server exposes over
// RMI: byte-addressed file content, keyed by dpath.Path. DiskBackend and
// S3Backend are the two implementations; config.C.Storage selects which
// one cmd/storageserver constructs.
type Backend interface {
	Size(p dpath.Path) (int64, error)
	ReadAt(p dpath.Path, offset, length int64) ([]byte, error)
	WriteAt(p dpath.Path, offset int64, data []byte) error
	Create(p dpath.Path) error
	Delete(p dpath.Path) error
	Exists(p dpath.Path) bool
	// Replace atomically overwrites the file at p with contents in full,
	// including truncating any bytes past len(contents) left over from a
	// previous, longer version of the file.
	Replace(p dpath.Path, contents []byte) error
}

// ClientServer implements the method shapes storageiface.ClientInterface
// requires, so it can be bound to an rmi.Skeleton directly.
type ClientServer struct {
	backend Backend
}

// NewClientServer returns a ClientServer backed by b.
func NewClientServer(b Backend) *ClientServer {
	return &ClientServer{backend: b}
}

func (s *ClientServer) Size(path string) (int64, error) {
	p, err := dpath.New(path)
	if err != nil {
		return 0, errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	return s.backend.Size(p)
}

func (s *ClientServer) Read(path string, offset, length int64) ([]byte, error) {
	p, err := dpath.New(path)
	if err != nil {
		return nil, errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	return s.backend.ReadAt(p, offset, length)
}

func (s *ClientServer) Write(path string, offset int64, data []byte) error {
	p, err := dpath.New(path)
	if err != nil {
		return errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	return s.backend.WriteAt(p, offset, data)
}

// CommandServer implements the method shapes storageiface.CommandInterface
// requires: the naming-only control surface used for create, delete, and
// replication copy.
type CommandServer struct {
	backend Backend
}

// NewCommandServer returns a CommandServer backed by b.
func NewCommandServer(b Backend) *CommandServer {
	return &CommandServer{backend: b}
}

func (s *CommandServer) Create(path string) (bool, error) {
	p, err := dpath.New(path)
	if err != nil {
		return false, errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	if err := s.backend.Create(p); err != nil {
		return false, err
	}
	return true, nil
}

func (s *CommandServer) Delete(path string) (bool, error) {
	p, err := dpath.New(path)
	if err != nil {
		return false, errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	if err := s.backend.Delete(p); err != nil {
		return false, err
	}
	return true, nil
}

// Copy fetches the current content of p from source, a storage server
// already hosting it, and stores it locally, creating the file if
// necessary. It is invoked by the naming service when a file's read
// access counter crosses the replication threshold.
func (s *CommandServer) Copy(path string, source rmi.Stub) (bool, error) {
	p, err := dpath.New(path)
	if err != nil {
		return false, errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	client := storageiface.WrapClientStub(source)
	size, err := client.Size(p)
	if err != nil {
		return false, err
	}
	data, err := client.Read(p, 0, size)
	if err != nil {
		return false, err
	}
	if err := s.backend.Replace(p, data); err != nil {
		return false, err
	}
	return true, nil
}
