package locktree_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nicolagi/dfs/internal/dpath"
	"github.com/nicolagi/dfs/internal/locktree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockOrderingNoDeadlock(t *testing.T) {
	tree := locktree.New(0)

	var paths []dpath.Path
	for i := 0; i < 20; i++ {
		paths = append(paths, dpath.MustNew(fmt.Sprintf("/a/b/%02d", i)))
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ordered := make([]dpath.Path, len(paths))
			copy(ordered, paths)
			dpath.SortPaths(ordered)
			var handles []*locktree.Handle
			for _, p := range ordered {
				handles = append(handles, tree.Lock(p, true))
			}
			for i := len(handles) - 1; i >= 0; i-- {
				handles[i].Unlock()
			}
		}()
	}
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("deadlock: lock acquisition in ascending path order did not complete")
	}
}

func TestReplicationThreshold(t *testing.T) {
	tree := locktree.New(3)
	p := dpath.MustNew("/a/b")

	for i := 0; i < 2; i++ {
		h := tree.Lock(p, false)
		assert.False(t, h.Triggered)
		h.Unlock()
	}
	h := tree.Lock(p, false)
	assert.True(t, h.Triggered)
	h.Unlock()

	// Counter reset: the next access shouldn't trigger again.
	h = tree.Lock(p, false)
	assert.False(t, h.Triggered)
	h.Unlock()
}

func TestExclusiveExcludesShared(t *testing.T) {
	tree := locktree.New(0)
	p := dpath.MustNew("/x")

	h := tree.Lock(p, true)

	acquired := make(chan struct{})
	go func() {
		h2 := tree.Lock(p, false)
		close(acquired)
		h2.Unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("shared lock acquired while exclusive lock held")
	case <-time.After(100 * time.Millisecond):
	}

	h.Unlock()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("shared lock never acquired after exclusive released")
	}
}

func TestPendingWriterBlocksNewReaders(t *testing.T) {
	tree := locktree.New(0)
	p := dpath.MustNew("/x")

	r1 := tree.Lock(p, false)

	writerWaiting := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		close(writerWaiting)
		w := tree.Lock(p, true)
		w.Unlock()
		close(writerDone)
	}()
	<-writerWaiting
	time.Sleep(50 * time.Millisecond) // let the writer start waiting

	newReaderAcquired := make(chan struct{})
	go func() {
		r2 := tree.Lock(p, false)
		close(newReaderAcquired)
		r2.Unlock()
	}()

	select {
	case <-newReaderAcquired:
		t.Fatal("new shared lock acquired ahead of pending writer")
	case <-time.After(100 * time.Millisecond):
	}

	r1.Unlock()

	require.Eventually(t, func() bool {
		select {
		case <-writerDone:
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
