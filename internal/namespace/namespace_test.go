package namespace_test

import (
	"testing"

	"github.com/nicolagi/dfs/internal/dfserr"
	"github.com/nicolagi/dfs/internal/dpath"
	"github.com/nicolagi/dfs/internal/namespace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateListDeleteFlow(t *testing.T) {
	tree := namespace.New()

	require.NoError(t, tree.AddDirectory(dpath.MustNew("/a")))
	require.NoError(t, tree.AddFile(dpath.MustNew("/a/b"), "s1"))

	names, err := tree.List(dpath.MustNew("/a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, names)

	isDir, err := tree.IsDirectory(dpath.MustNew("/a/b"))
	require.NoError(t, err)
	assert.False(t, isDir)

	removed, err := tree.RemoveSubtree(dpath.MustNew("/a"))
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "/a/b", removed[0].Path.String())
	assert.Equal(t, []string{"s1"}, removed[0].Hosts)

	_, err = tree.List(dpath.MustNew("/a"))
	require.ErrorIs(t, err, dfserr.ErrNotFound)
}

func TestCreateFailsOnMissingOrWrongParent(t *testing.T) {
	tree := namespace.New()
	err := tree.AddFile(dpath.MustNew("/a/b"), "s1")
	require.ErrorIs(t, err, dfserr.ErrNotFound)

	require.NoError(t, tree.AddFile(dpath.MustNew("/f"), "s1"))
	err = tree.AddFile(dpath.MustNew("/f/g"), "s1")
	require.ErrorIs(t, err, dfserr.ErrIsFile)
}

func TestCreateFailsOnExistingName(t *testing.T) {
	tree := namespace.New()
	require.NoError(t, tree.AddDirectory(dpath.MustNew("/a")))
	err := tree.AddDirectory(dpath.MustNew("/a"))
	require.ErrorIs(t, err, dfserr.ErrExist)
}

func TestRootIsAlwaysDirectory(t *testing.T) {
	tree := namespace.New()
	isDir, err := tree.IsDirectory(dpath.Root)
	require.NoError(t, err)
	assert.True(t, isDir)
}

func TestRootCannotBeDeleted(t *testing.T) {
	tree := namespace.New()
	_, err := tree.RemoveSubtree(dpath.Root)
	require.ErrorIs(t, err, dfserr.ErrIllegalArgument)
}

func TestEnsureDirectoriesAndRegistrationDuplicates(t *testing.T) {
	tree := namespace.New()

	// Storage server S1 registers with [/x, /y].
	for _, raw := range []string{"/x", "/y"} {
		p := dpath.MustNew(raw)
		require.NoError(t, tree.EnsureDirectories(p.Parent()))
		require.NoError(t, tree.AddFile(p, "s1"))
	}

	// Storage server S2 offers [/y, /z]; /y is a duplicate.
	var duplicates []dpath.Path
	for _, raw := range []string{"/y", "/z"} {
		p := dpath.MustNew(raw)
		if tree.Exists(p) {
			duplicates = append(duplicates, p)
			continue
		}
		require.NoError(t, tree.EnsureDirectories(p.Parent()))
		require.NoError(t, tree.AddFile(p, "s2"))
	}
	require.Len(t, duplicates, 1)
	assert.Equal(t, "/y", duplicates[0].String())

	hostsX, err := tree.Hosts(dpath.MustNew("/x"))
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, hostsX)

	hostsZ, err := tree.Hosts(dpath.MustNew("/z"))
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, hostsZ)
}

func TestReplicationAndInvalidation(t *testing.T) {
	tree := namespace.New()
	require.NoError(t, tree.AddFile(dpath.MustNew("/f"), "s1"))

	require.NoError(t, tree.AddHost(dpath.MustNew("/f"), "s2"))
	hosts, err := tree.Hosts(dpath.MustNew("/f"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1", "s2"}, hosts)

	require.NoError(t, tree.SetHosts(dpath.MustNew("/f"), []string{"s2"}))
	hosts, err = tree.Hosts(dpath.MustNew("/f"))
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, hosts)
}
