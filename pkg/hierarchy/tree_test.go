package hierarchy

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestTree() *Tree {
	return NewTree(time.Second)
}

func TestSetParent_RejectsSelf(t *testing.T) {
	tr := newTestTree()
	n := uuid.New()
	var selfErr *SelfReferenceError
	_, err := tr.SetParent(n, &n)
	require.ErrorAs(t, err, &selfErr)
}

func TestSetParent_RejectsTwoNodeCycle(t *testing.T) {
	tr := newTestTree()
	a, b := uuid.New(), uuid.New()

	_, err := tr.SetParent(a, &b)
	require.NoError(t, err)

	var cycleErr *CycleError
	_, err = tr.SetParent(b, &a)
	require.ErrorAs(t, err, &cycleErr)

	// State unchanged: a still hangs under b, b stays a root.
	p, ok, err := tr.Parent(a)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, b, p)
	_, ok, err = tr.Parent(b)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSetParent_RejectsDeepCycle(t *testing.T) {
	tr := newTestTree()
	n := ids(3)
	_, err := tr.SetParent(n[1], &n[0])
	require.NoError(t, err)
	_, err = tr.SetParent(n[2], &n[1])
	require.NoError(t, err)

	var cycleErr *CycleError
	_, err = tr.SetParent(n[0], &n[2])
	require.ErrorAs(t, err, &cycleErr)
}

func TestSetParent_ReparentAndDetach(t *testing.T) {
	tr := newTestTree()
	n := ids(3)

	prev, err := tr.SetParent(n[2], &n[0])
	require.NoError(t, err)
	require.Nil(t, prev)

	prev, err = tr.SetParent(n[2], &n[1])
	require.NoError(t, err)
	require.NotNil(t, prev)
	require.Equal(t, n[0], *prev)

	prev, err = tr.SetParent(n[2], nil)
	require.NoError(t, err)
	require.NotNil(t, prev)
	require.Equal(t, n[1], *prev)

	_, ok, err := tr.Parent(n[2])
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTreeAncestors(t *testing.T) {
	tr := newTestTree()
	n := ids(3)
	_, err := tr.SetParent(n[1], &n[0])
	require.NoError(t, err)
	_, err = tr.SetParent(n[2], &n[1])
	require.NoError(t, err)

	chain, err := tr.Ancestors(n[2])
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{n[1], n[0]}, chain)

	chain, err = tr.Ancestors(n[0])
	require.NoError(t, err)
	require.Empty(t, chain)
}

func TestTree_BusyAfterTimeout(t *testing.T) {
	tr := NewTree(50 * time.Millisecond)
	require.NoError(t, tr.acquire())
	defer tr.release()

	a, b := uuid.New(), uuid.New()
	var busy *BusyError
	_, err := tr.SetParent(a, &b)
	require.ErrorAs(t, err, &busy)
}
