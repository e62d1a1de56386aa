package naming_test

import (
	"testing"

	"github.com/nicolagi/dfs/internal/dpath"
	"github.com/nicolagi/dfs/internal/naming"
	"github.com/nicolagi/dfs/internal/rmi"
	"github.com/stretchr/testify/require"
)

// startNamingServer binds a Service behind real rmi.Skeletons on its two
// ports, the shape cmd/namingserver wires in production, and returns stubs
// connected to both.
func startNamingServer(t *testing.T, svc *naming.Service) (naming.ClientStub, naming.RegisterStub, func()) {
	t.Helper()

	clientSk, err := rmi.NewSkeleton(naming.ClientInterface, naming.NewClientServer(svc), "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, clientSk.Start())

	registerSk, err := rmi.NewSkeleton(naming.RegisterInterface, naming.NewRegisterServer(svc), "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, registerSk.Start())

	clientStub, err := naming.NewClientStub(clientSk.Addr())
	require.NoError(t, err)
	registerStub, err := naming.NewRegisterStub(registerSk.Addr())
	require.NoError(t, err)

	return clientStub, registerStub, func() {
		clientSk.Stop()
		registerSk.Stop()
	}
}

// TestNamingServiceOverRMI exercises the naming service's own wire shapes
// (ClientInterface and RegisterInterface), as opposed to the rest of this
// package's tests, which call Service directly in-process. A storage server
// registers over RegisterStub, and a client drives the full create/write/
// read/ls/rm flow over ClientStub, confirming both descriptors round-trip
// correctly end to end.
func TestNamingServiceOverRMI(t *testing.T) {
	svc := naming.NewService(0, nil)
	namingClient, namingRegister, stopNaming := startNamingServer(t, svc)
	defer stopNaming()

	storageClientAddr, storageCommandAddr, stopStorage := startStorageServer(t, t.TempDir())
	defer stopStorage()

	dup, err := namingRegister.Register(storageClientAddr, storageCommandAddr, nil)
	require.NoError(t, err)
	require.Empty(t, dup)

	dir := dpath.MustNew("/d")
	require.NoError(t, namingClient.CreateDirectory(dir))

	isDir, err := namingClient.IsDirectory(dir)
	require.NoError(t, err)
	require.True(t, isDir)

	p := dpath.MustNew("/d/f")
	require.NoError(t, namingClient.CreateFile(p))

	names, err := namingClient.List(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"f"}, names)

	wstub, err := namingClient.GetStorage(p, true)
	require.NoError(t, err)
	require.NoError(t, wstub.Write(p, 0, []byte("over the wire")))

	rstub, err := namingClient.GetStorage(p, false)
	require.NoError(t, err)
	data, err := rstub.Read(p, 0, int64(len("over the wire")))
	require.NoError(t, err)
	require.Equal(t, "over the wire", string(data))

	require.NoError(t, namingClient.Delete(dir))
	_, err = namingClient.IsDirectory(dir)
	require.Error(t, err)
}

func TestRegisterStubReportsDuplicatesOverRMI(t *testing.T) {
	svc := naming.NewService(0, nil)
	_, namingRegister, stopNaming := startNamingServer(t, svc)
	defer stopNaming()

	c1, s1, stop1 := startStorageServer(t, t.TempDir())
	defer stop1()
	dup, err := namingRegister.Register(c1, s1, []dpath.Path{dpath.MustNew("/x")})
	require.NoError(t, err)
	require.Empty(t, dup)

	c2, s2, stop2 := startStorageServer(t, t.TempDir())
	defer stop2()
	dup, err = namingRegister.Register(c2, s2, []dpath.Path{dpath.MustNew("/x"), dpath.MustNew("/y")})
	require.NoError(t, err)
	require.Len(t, dup, 1)
	require.Equal(t, "/x", dup[0].String())
}
