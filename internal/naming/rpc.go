package naming

import (
	"github.com/nicolagi/dfs/internal/dfserr"
	"github.com/nicolagi/dfs/internal/dpath"
	"github.com/nicolagi/dfs/internal/rmi"
	"github.com/pkg/errors"
)

// ClientServer adapts a Service to the method shapes ClientInterface
// requires, for binding to an rmi.Skeleton on the naming server's client
// port.
type ClientServer struct {
	service *Service
}

// NewClientServer returns a ClientServer backed by service.
func NewClientServer(service *Service) *ClientServer {
	return &ClientServer{service: service}
}

func parsePath(raw string) (dpath.Path, error) {
	p, err := dpath.New(raw)
	if err != nil {
		return dpath.Path{}, errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	return p, nil
}

func (c *ClientServer) IsDirectory(path string) (bool, error) {
	p, err := parsePath(path)
	if err != nil {
		return false, err
	}
	return c.service.IsDirectory(p)
}

func (c *ClientServer) List(path string) ([]string, error) {
	p, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	return c.service.List(p)
}

func (c *ClientServer) CreateFile(path string) error {
	p, err := parsePath(path)
	if err != nil {
		return err
	}
	return c.service.CreateFile(p)
}

func (c *ClientServer) CreateDirectory(path string) error {
	p, err := parsePath(path)
	if err != nil {
		return err
	}
	return c.service.CreateDirectory(p)
}

func (c *ClientServer) Delete(path string) error {
	p, err := parsePath(path)
	if err != nil {
		return err
	}
	return c.service.Delete(p)
}

func (c *ClientServer) GetStorage(path string, exclusive bool) (rmi.Stub, error) {
	p, err := parsePath(path)
	if err != nil {
		return rmi.Stub{}, err
	}
	stub, err := c.service.GetStorage(p, exclusive)
	if err != nil {
		return rmi.Stub{}, err
	}
	return stub.Underlying(), nil
}

// RegisterServer adapts a Service to the method shape RegisterInterface
// requires, for binding to an rmi.Skeleton on the naming server's
// registration port.
type RegisterServer struct {
	service *Service
}

// NewRegisterServer returns a RegisterServer backed by service.
func NewRegisterServer(service *Service) *RegisterServer {
	return &RegisterServer{service: service}
}

func (r *RegisterServer) Register(clientAddr, commandAddr string, files []string) ([]string, error) {
	paths := make([]dpath.Path, len(files))
	for i, f := range files {
		p, err := parsePath(f)
		if err != nil {
			return nil, err
		}
		paths[i] = p
	}
	duplicates, err := r.service.Register(clientAddr, commandAddr, paths)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(duplicates))
	for i, p := range duplicates {
		out[i] = p.String()
	}
	return out, nil
}
