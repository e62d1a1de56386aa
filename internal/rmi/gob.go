package rmi

import "bytes"

// gobStub is the exported mirror of Stub used for encoding: Stub's fields
// are deliberately unexported (equality and hashing are meant to be
// derived only from them, see stub.go), but gob cannot encode unexported
// fields directly, so Stub implements GobEncode/GobDecode itself. This is
// what makes a Stub serializable as value data across an RMI call.
type gobStub struct {
	IfaceName string
	Addr      string
}

// GobEncode implements gob.GobEncoder.
func (s Stub) GobEncode() ([]byte, error) {
	return encodeValue(gobStub{IfaceName: s.ifaceName, Addr: s.addr})
}

// GobDecode implements gob.GobDecoder.
func (s *Stub) GobDecode(data []byte) error {
	var g gobStub
	if err := decode(bytes.NewReader(data), &g); err != nil {
		return err
	}
	s.ifaceName = g.IfaceName
	s.addr = g.Addr
	return nil
}
