package rmi

import (
	"bytes"
	"encoding/gob"
	"io"
)

// request is the wire record written by a Stub and read by a Skeleton's
// service task: a method name, the parameter type names the stub believes
// the method has (so a Skeleton whose interface has since diverged can
// reject the call instead of panicking on a bad reflect.Call), and the
// gob-encoded arguments, one blob per argument so each can be decoded
// against its own concrete type without requiring gob.Register.
type request struct {
	Method     string
	ParamTypes []string
	Args       [][]byte
}

// reply is the wire record written by a Skeleton's service task and read
// by the Stub that made the call.
type reply struct {
	OK bool

	// Set when OK: the gob-encoded return value, or nil for a void method.
	Payload []byte

	// Set when !OK.
	ErrMessage string
	// Index into the method's Declared slice that the thrown error
	// matched, or -1 if it matched none (in which case the stub wraps it
	// as a transport error).
	ErrSentinel int
}

func encode(w io.Writer, v interface{}) error {
	return gob.NewEncoder(w).Encode(v)
}

func decode(r io.Reader, v interface{}) error {
	return gob.NewDecoder(r).Decode(v)
}

func encodeValue(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
