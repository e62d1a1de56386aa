package dpath_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nicolagi/dfs/internal/dfserr"
	"github.com/nicolagi/dfs/internal/dpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndComponents(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"/", nil},
		{"", nil},
		{"/a", []string{"a"}},
		{"a/b/c", []string{"a", "b", "c"}},
		{"/a/b/c/", []string{"a", "b", "c"}},
	}
	for _, c := range cases {
		p, err := dpath.New(c.in)
		require.NoError(t, err)
		if diff := cmp.Diff(c.want, p.Components()); diff != "" && len(c.want)+len(p.Components()) != 0 {
			t.Errorf("New(%q).Components() mismatch (-want +got):\n%s", c.in, diff)
		}
	}
}

func TestNewRejectsBadComponents(t *testing.T) {
	for _, in := range []string{"a//b", "a:b"} {
		_, err := dpath.New(in)
		require.ErrorIs(t, err, dfserr.ErrInvalidPath)
	}
}

func TestAncestorsAndIsSubpath(t *testing.T) {
	p := dpath.MustNew("/a/b/c")
	ancestors := p.Ancestors()
	require.Len(t, ancestors, 3)
	assert.Equal(t, "/", ancestors[0].String())
	assert.Equal(t, "/a", ancestors[1].String())
	assert.Equal(t, "/a/b", ancestors[2].String())

	assert.True(t, p.IsSubpath(dpath.MustNew("/a/b")))
	assert.True(t, p.IsSubpath(dpath.Root))
	assert.False(t, dpath.MustNew("/a/b").IsSubpath(p))
}

func TestSortPathsOrdersAncestorsBeforeDescendants(t *testing.T) {
	paths := []dpath.Path{
		dpath.MustNew("/b"),
		dpath.MustNew("/a/b"),
		dpath.MustNew("/a"),
		dpath.Root,
	}
	dpath.SortPaths(paths)
	var got []string
	for _, p := range paths {
		got = append(got, p.String())
	}
	want := []string{"/", "/a", "/a/b", "/b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SortPaths order mismatch (-want +got):\n%s", diff)
	}
}

func TestParseHostPath(t *testing.T) {
	host, rest := dpath.Parse("storage1:/a/b")
	assert.Equal(t, "storage1", host)
	assert.Equal(t, "/a/b", rest)

	host, rest = dpath.Parse("/a/b")
	assert.Equal(t, "", host)
	assert.Equal(t, "/a/b", rest)
}
