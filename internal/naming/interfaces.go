package naming

import (
	"reflect"

	"github.com/nicolagi/dfs/internal/dfserr"
	"github.com/nicolagi/dfs/internal/rmi"
)

var stringType = reflect.TypeOf("")
var boolType = reflect.TypeOf(false)
var stringSliceType = reflect.TypeOf([]string(nil))
var stubType = reflect.TypeOf(rmi.Stub{})

// ClientInterface describes the naming service's client-facing methods,
// exposed on the naming server's client port.
var ClientInterface = mustInterface("NamingClient",
	rmi.Method{
		Name:     "IsDirectory",
		In:       []reflect.Type{stringType},
		Out:      boolType,
		Declared: []error{dfserr.ErrTransport, dfserr.ErrNotFound},
	},
	rmi.Method{
		Name:     "List",
		In:       []reflect.Type{stringType},
		Out:      stringSliceType,
		Declared: []error{dfserr.ErrTransport, dfserr.ErrNotFound, dfserr.ErrIsFile},
	},
	rmi.Method{
		Name:     "CreateFile",
		In:       []reflect.Type{stringType},
		Out:      nil,
		Declared: []error{dfserr.ErrTransport, dfserr.ErrExist, dfserr.ErrNotFound, dfserr.ErrIsFile, dfserr.ErrIllegalState},
	},
	rmi.Method{
		Name:     "CreateDirectory",
		In:       []reflect.Type{stringType},
		Out:      nil,
		Declared: []error{dfserr.ErrTransport, dfserr.ErrExist, dfserr.ErrNotFound, dfserr.ErrIsFile},
	},
	rmi.Method{
		Name:     "Delete",
		In:       []reflect.Type{stringType},
		Out:      nil,
		Declared: []error{dfserr.ErrTransport, dfserr.ErrNotFound, dfserr.ErrIllegalArgument},
	},
	rmi.Method{
		Name:     "GetStorage",
		In:       []reflect.Type{stringType, boolType},
		Out:      stubType,
		Declared: []error{dfserr.ErrTransport, dfserr.ErrNotFound, dfserr.ErrIsDirectory, dfserr.ErrIllegalState},
	},
)

// RegisterInterface describes the naming service's registration method,
// exposed on the naming server's registration port.
var RegisterInterface = mustInterface("NamingRegistration",
	rmi.Method{
		Name:     "Register",
		In:       []reflect.Type{stringType, stringType, stringSliceType},
		Out:      stringSliceType,
		Declared: []error{dfserr.ErrTransport, dfserr.ErrIllegalState, dfserr.ErrInvalidPath},
	},
)

func mustInterface(name string, methods ...rmi.Method) *rmi.Interface {
	iface, err := rmi.NewInterface(name, methods...)
	if err != nil {
		panic(err)
	}
	return iface
}
