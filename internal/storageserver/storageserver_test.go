package storageserver_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nicolagi/dfs/internal/dpath"
	"github.com/nicolagi/dfs/internal/rmi"
	"github.com/nicolagi/dfs/internal/storageiface"
	"github.com/nicolagi/dfs/internal/storageserver"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, dir string) (storageiface.ClientStub, storageiface.CommandStub, func()) {
	t.Helper()
	backend := storageserver.NewDiskBackend(dir)

	clientSk, err := rmi.NewSkeleton(storageiface.ClientInterface, storageserver.NewClientServer(backend), "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, clientSk.Start())

	commandSk, err := rmi.NewSkeleton(storageiface.CommandInterface, storageserver.NewCommandServer(backend), "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, commandSk.Start())

	clientStub, err := storageiface.NewClientStub(clientSk.Addr())
	require.NoError(t, err)
	commandStub, err := storageiface.NewCommandStub(commandSk.Addr())
	require.NoError(t, err)

	return clientStub, commandStub, func() {
		clientSk.Stop()
		commandSk.Stop()
	}
}

func TestCreateWriteReadOverRMI(t *testing.T) {
	client, command, stop := startServer(t, t.TempDir())
	defer stop()

	p := dpath.MustNew("/a/b")
	ok, err := command.Create(p)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, client.Write(p, 0, []byte("hello world")))

	size, err := client.Size(p)
	require.NoError(t, err)
	require.EqualValues(t, len("hello world"), size)

	data, err := client.Read(p, 6, 5)
	require.NoError(t, err)
	require.Equal(t, "world", string(data))
}

func TestReadMissingFileFails(t *testing.T) {
	client, _, stop := startServer(t, t.TempDir())
	defer stop()

	_, err := client.Read(dpath.MustNew("/nope"), 0, 1)
	require.Error(t, err)
}

func TestCopyBetweenServers(t *testing.T) {
	sourceClient, sourceCommand, stopSource := startServer(t, t.TempDir())
	defer stopSource()
	_, targetCommand, stopTarget := startServer(t, t.TempDir())
	defer stopTarget()

	p := dpath.MustNew("/f")
	ok, err := sourceCommand.Create(p)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, sourceClient.Write(p, 0, []byte("replicated content")))

	ok, err = targetCommand.Copy(p, sourceClient)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDiskBackendList(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a"), 0777))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "b"), []byte("x"), 0666))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c"), []byte("y"), 0666))

	backend := storageserver.NewDiskBackend(dir)
	paths, err := backend.List()
	require.NoError(t, err)
	var names []string
	for _, p := range paths {
		names = append(names, p.String())
	}
	require.ElementsMatch(t, []string{"/a/b", "/c"}, names)
}
