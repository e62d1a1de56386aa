// Package rmi implements a connection-per-call remote method invocation
// substrate: a Skeleton accepts connections and dispatches each to a
// server object; a Stub opens a fresh connection per call and marshals a
// request/reply pair across it.
//
// The wire format is encoding/gob over a single net.Conn per call, the
// same codec Go's own net/rpc package defaults to. Remote interfaces are
// bound through hand-written stubs over a common wire contract, not
// dynamic proxy generation.
package rmi

import (
	"reflect"

	"github.com/nicolagi/dfs/internal/dfserr"
	"github.com/pkg/errors"
)

// Method describes one remote method: its name, the ordered types of its
// parameters, its return type (nil for a void method), and the set of
// error sentinels it may throw. Declared must include dfserr.ErrTransport,
// or the interface is rejected as a BadInterface at construction time.
type Method struct {
	Name     string
	In       []reflect.Type
	Out      reflect.Type
	Declared []error
}

// Interface is a named, ordered set of remote method signatures: the
// descriptor shared by a Skeleton and the Stubs that call it.
type Interface struct {
	Name    string
	Methods []Method

	byName map[string]int
}

// NewInterface validates and builds an Interface descriptor. Construction
// fails with dfserr.ErrBadInterface if any method omits dfserr.ErrTransport
// from its declared error set (spec invariant 1, "non-remote rejection").
func NewInterface(name string, methods ...Method) (*Interface, error) {
	byName := make(map[string]int, len(methods))
	for i, m := range methods {
		if !declaresTransport(m.Declared) {
			return nil, errors.Wrapf(dfserr.ErrBadInterface, "interface %q method %q", name, m.Name)
		}
		if _, dup := byName[m.Name]; dup {
			return nil, errors.Errorf("rmi: interface %q: duplicate method %q", name, m.Name)
		}
		byName[m.Name] = i
	}
	return &Interface{Name: name, Methods: methods, byName: byName}, nil
}

func declaresTransport(declared []error) bool {
	for _, e := range declared {
		if e == dfserr.ErrTransport {
			return true
		}
	}
	return false
}

func (i *Interface) method(name string) (Method, bool) {
	idx, ok := i.byName[name]
	if !ok {
		return Method{}, false
	}
	return i.Methods[idx], true
}

// sentinelIndex returns the index of the first declared sentinel that err
// matches via errors.Is, or -1 if none match.
func (m Method) sentinelIndex(err error) int {
	for i, s := range m.Declared {
		if errors.Is(err, s) {
			return i
		}
	}
	return -1
}
