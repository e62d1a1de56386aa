// Package storageiface declares the two remote interfaces a storage server
// exposes: a client-facing interface for file I/O (Size, Read, Write) and a
// naming-only command interface (Create, Delete, Copy). Both are
// rmi.Interface descriptors plus small hand-written proxy structs wrapping
// rmi.Invoke, rather than a dynamically generated proxy.
//
// Paths cross the wire as their canonical string form rather than as
// dpath.Path values, since dpath.Path keeps its components unexported;
// every proxy method here takes and returns dpath.Path and does the
// string conversion at the boundary.
package storageiface

import (
	"reflect"

	"github.com/nicolagi/dfs/internal/dfserr"
	"github.com/nicolagi/dfs/internal/dpath"
	"github.com/nicolagi/dfs/internal/rmi"
)

var stringType = reflect.TypeOf("")
var int64Type = reflect.TypeOf(int64(0))
var bytesType = reflect.TypeOf([]byte(nil))
var boolType = reflect.TypeOf(false)
var stubType = reflect.TypeOf(rmi.Stub{})

// ClientInterface describes the client-facing storage methods.
var ClientInterface = mustInterface("StorageClient",
	rmi.Method{
		Name:     "Size",
		In:       []reflect.Type{stringType},
		Out:      int64Type,
		Declared: []error{dfserr.ErrTransport, dfserr.ErrNotFound, dfserr.ErrIsDirectory},
	},
	rmi.Method{
		Name:     "Read",
		In:       []reflect.Type{stringType, int64Type, int64Type},
		Out:      bytesType,
		Declared: []error{dfserr.ErrTransport, dfserr.ErrNotFound, dfserr.ErrIllegalArgument},
	},
	rmi.Method{
		Name:     "Write",
		In:       []reflect.Type{stringType, int64Type, bytesType},
		Out:      nil,
		Declared: []error{dfserr.ErrTransport, dfserr.ErrNotFound, dfserr.ErrIllegalArgument},
	},
)

// CommandInterface describes the naming-only storage control methods.
var CommandInterface = mustInterface("StorageCommand",
	rmi.Method{
		Name:     "Create",
		In:       []reflect.Type{stringType},
		Out:      boolType,
		Declared: []error{dfserr.ErrTransport, dfserr.ErrExist},
	},
	rmi.Method{
		Name:     "Delete",
		In:       []reflect.Type{stringType},
		Out:      boolType,
		Declared: []error{dfserr.ErrTransport, dfserr.ErrNotFound},
	},
	rmi.Method{
		Name:     "Copy",
		In:       []reflect.Type{stringType, stubType},
		Out:      boolType,
		Declared: []error{dfserr.ErrTransport, dfserr.ErrNotFound},
	},
)

func mustInterface(name string, methods ...rmi.Method) *rmi.Interface {
	iface, err := rmi.NewInterface(name, methods...)
	if err != nil {
		panic(err)
	}
	return iface
}

// ClientStub is the client-facing storage proxy: size, read, write.
type ClientStub struct{ stub rmi.Stub }

// NewClientStub builds a ClientStub targeting addr.
func NewClientStub(addr string) (ClientStub, error) {
	s, err := rmi.NewStub(ClientInterface, addr)
	return ClientStub{stub: s}, err
}

// WrapClientStub adapts an already-built rmi.Stub, e.g. one received as an
// argument over the wire (as Copy's source parameter is).
func WrapClientStub(s rmi.Stub) ClientStub { return ClientStub{stub: s} }

// Underlying returns the wrapped rmi.Stub, for passing this stub as an
// argument to another remote call (as naming.Service does when assigning
// a file's client stub to callers of getStorage).
func (c ClientStub) Underlying() rmi.Stub { return c.stub }

func (c ClientStub) Size(p dpath.Path) (int64, error) {
	return rmi.Invoke[int64](c.stub, ClientInterface, "Size", p.String())
}

func (c ClientStub) Read(p dpath.Path, offset, length int64) ([]byte, error) {
	return rmi.Invoke[[]byte](c.stub, ClientInterface, "Read", p.String(), offset, length)
}

func (c ClientStub) Write(p dpath.Path, offset int64, data []byte) error {
	_, err := rmi.Invoke[struct{}](c.stub, ClientInterface, "Write", p.String(), offset, data)
	return err
}

// CommandStub is the naming-only storage proxy: create, delete, copy.
type CommandStub struct{ stub rmi.Stub }

// NewCommandStub builds a CommandStub targeting addr.
func NewCommandStub(addr string) (CommandStub, error) {
	s, err := rmi.NewStub(CommandInterface, addr)
	return CommandStub{stub: s}, err
}

// Underlying returns the wrapped rmi.Stub.
func (c CommandStub) Underlying() rmi.Stub { return c.stub }

func (c CommandStub) Create(p dpath.Path) (bool, error) {
	return rmi.Invoke[bool](c.stub, CommandInterface, "Create", p.String())
}

func (c CommandStub) Delete(p dpath.Path) (bool, error) {
	return rmi.Invoke[bool](c.stub, CommandInterface, "Delete", p.String())
}

func (c CommandStub) Copy(p dpath.Path, source ClientStub) (bool, error) {
	return rmi.Invoke[bool](c.stub, CommandInterface, "Copy", p.String(), source.Underlying())
}
