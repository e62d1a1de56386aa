package rmi_test

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/nicolagi/dfs/internal/dfserr"
	"github.com/nicolagi/dfs/internal/rmi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFileNotFound = errors.New("file not found")

type testServer struct {
	mu        sync.Mutex
	rendezvousN int
	rendezvousCh chan struct{}
}

func (s *testServer) Method(fail bool) error {
	if fail {
		return errFileNotFound
	}
	return nil
}

func (s *testServer) Rendezvous() (bool, error) {
	s.mu.Lock()
	s.rendezvousN++
	n := s.rendezvousN
	ch := s.rendezvousCh
	s.mu.Unlock()
	if n == 2 {
		close(ch)
	}
	<-ch
	return true, nil
}

func testInterface(t *testing.T) *rmi.Interface {
	t.Helper()
	iface, err := rmi.NewInterface("TestInterface",
		rmi.Method{
			Name:     "Method",
			In:       []reflect.Type{reflect.TypeOf(false)},
			Out:      nil,
			Declared: []error{dfserr.ErrTransport, errFileNotFound},
		},
		rmi.Method{
			Name:     "Rendezvous",
			In:       nil,
			Out:      reflect.TypeOf(false),
			Declared: []error{dfserr.ErrTransport},
		},
	)
	require.NoError(t, err)
	return iface
}

func TestNonRemoteInterfaceRejected(t *testing.T) {
	_, err := rmi.NewInterface("Bad",
		rmi.Method{
			Name:     "NoTransport",
			In:       nil,
			Out:      nil,
			Declared: []error{errFileNotFound}, // missing dfserr.ErrTransport
		},
	)
	require.ErrorIs(t, err, dfserr.ErrBadInterface)
}

func TestCallTransparencyAndExceptionTransparency(t *testing.T) {
	defer leaktest.Check(t)()

	iface := testInterface(t)
	server := &testServer{rendezvousCh: make(chan struct{})}
	sk, err := rmi.NewSkeleton(iface, server, "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, sk.Start())
	defer sk.Stop()

	stub, err := rmi.NewStubForSkeleton(iface, sk)
	require.NoError(t, err)

	_, err = rmi.Invoke[struct{}](stub, iface, "Method", false)
	require.NoError(t, err)

	_, err = rmi.Invoke[struct{}](stub, iface, "Method", true)
	require.ErrorIs(t, err, errFileNotFound)
}

func TestMultipleConcurrency(t *testing.T) {
	defer leaktest.Check(t)()

	iface := testInterface(t)
	server := &testServer{rendezvousCh: make(chan struct{})}
	sk, err := rmi.NewSkeleton(iface, server, "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, sk.Start())
	defer sk.Stop()

	stub, err := rmi.NewStubForSkeleton(iface, sk)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := rmi.Invoke[bool](stub, iface, "Rendezvous")
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("rendezvous did not complete")
	}
	assert.True(t, results[0])
	assert.True(t, results[1])
}

func TestStubEquality(t *testing.T) {
	iface := testInterface(t)
	s1, err := rmi.NewStub(iface, "127.0.0.1:1111")
	require.NoError(t, err)
	s2, err := rmi.NewStub(iface, "127.0.0.1:1111")
	require.NoError(t, err)
	s3, err := rmi.NewStub(iface, "127.0.0.1:2222")
	require.NoError(t, err)

	assert.Equal(t, s1, s2)
	assert.NotEqual(t, s1, s3)

	m := map[rmi.Stub]int{s1: 1}
	_, ok := m[s2]
	assert.True(t, ok)
}

func TestTransportErrorOnClosedSkeleton(t *testing.T) {
	iface := testInterface(t)
	server := &testServer{rendezvousCh: make(chan struct{})}
	sk, err := rmi.NewSkeleton(iface, server, "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, sk.Start())
	stub, err := rmi.NewStubForSkeleton(iface, sk)
	require.NoError(t, err)
	sk.Stop()

	_, err = rmi.Invoke[struct{}](stub, iface, "Method", false)
	require.Error(t, err)
	require.ErrorIs(t, err, dfserr.ErrTransport)
}

func TestStubForUnstartedSkeletonFails(t *testing.T) {
	iface := testInterface(t)
	server := &testServer{rendezvousCh: make(chan struct{})}
	sk, err := rmi.NewSkeleton(iface, server, "127.0.0.1:0")
	require.NoError(t, err)
	_, err = rmi.NewStubForSkeleton(iface, sk)
	require.ErrorIs(t, err, dfserr.ErrIllegalState)
}
