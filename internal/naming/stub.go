package naming

import (
	"github.com/nicolagi/dfs/internal/dpath"
	"github.com/nicolagi/dfs/internal/rmi"
	"github.com/nicolagi/dfs/internal/storageiface"
)

// ClientStub is the proxy a dfs client (e.g. cmd/dfs) holds for the
// naming server's client port.
type ClientStub struct{ stub rmi.Stub }

// NewClientStub builds a ClientStub targeting addr.
func NewClientStub(addr string) (ClientStub, error) {
	s, err := rmi.NewStub(ClientInterface, addr)
	return ClientStub{stub: s}, err
}

func (c ClientStub) IsDirectory(p dpath.Path) (bool, error) {
	return rmi.Invoke[bool](c.stub, ClientInterface, "IsDirectory", p.String())
}

func (c ClientStub) List(p dpath.Path) ([]string, error) {
	return rmi.Invoke[[]string](c.stub, ClientInterface, "List", p.String())
}

func (c ClientStub) CreateFile(p dpath.Path) error {
	_, err := rmi.Invoke[struct{}](c.stub, ClientInterface, "CreateFile", p.String())
	return err
}

func (c ClientStub) CreateDirectory(p dpath.Path) error {
	_, err := rmi.Invoke[struct{}](c.stub, ClientInterface, "CreateDirectory", p.String())
	return err
}

func (c ClientStub) Delete(p dpath.Path) error {
	_, err := rmi.Invoke[struct{}](c.stub, ClientInterface, "Delete", p.String())
	return err
}

// GetStorage returns a storage client stub for reading (exclusive=false)
// or writing (exclusive=true) the file at p.
func (c ClientStub) GetStorage(p dpath.Path, exclusive bool) (storageiface.ClientStub, error) {
	s, err := rmi.Invoke[rmi.Stub](c.stub, ClientInterface, "GetStorage", p.String(), exclusive)
	if err != nil {
		return storageiface.ClientStub{}, err
	}
	return storageiface.WrapClientStub(s), nil
}

// RegisterStub is the proxy a storage server holds for the naming
// server's registration port.
type RegisterStub struct{ stub rmi.Stub }

// NewRegisterStub builds a RegisterStub targeting addr.
func NewRegisterStub(addr string) (RegisterStub, error) {
	s, err := rmi.NewStub(RegisterInterface, addr)
	return RegisterStub{stub: s}, err
}

// Register registers a storage server offering files at clientAddr /
// commandAddr, returning the subset of files already known to the
// naming service under a different host.
func (r RegisterStub) Register(clientAddr, commandAddr string, files []dpath.Path) ([]dpath.Path, error) {
	raw := make([]string, len(files))
	for i, f := range files {
		raw[i] = f.String()
	}
	out, err := rmi.Invoke[[]string](r.stub, RegisterInterface, "Register", clientAddr, commandAddr, raw)
	if err != nil {
		return nil, err
	}
	paths := make([]dpath.Path, len(out))
	for i, s := range out {
		p, err := dpath.New(s)
		if err != nil {
			return nil, err
		}
		paths[i] = p
	}
	return paths, nil
}
