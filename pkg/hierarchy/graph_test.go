package hierarchy

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestGraph() *Graph {
	return NewGraph(time.Second)
}

func ids(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

func TestAddEdge_RejectsSelfLoop(t *testing.T) {
	g := newTestGraph()
	n := uuid.New()
	var selfErr *SelfReferenceError
	require.ErrorAs(t, g.AddEdge(n, n, "depends_on"), &selfErr)
	require.Equal(t, n, selfErr.Node)
}

func TestAddEdge_RejectsDuplicateTriple(t *testing.T) {
	g := newTestGraph()
	n := ids(2)
	require.NoError(t, g.AddEdge(n[0], n[1], "depends_on"))

	var dupErr *DuplicateError
	require.ErrorAs(t, g.AddEdge(n[0], n[1], "depends_on"), &dupErr)

	// Same endpoints under a different type are a new edge, not a duplicate.
	require.NoError(t, g.AddEdge(n[0], n[1], "attached_to"))
}

func TestAddEdge_RejectsCycleAndLeavesGraphUnchanged(t *testing.T) {
	g := newTestGraph()
	n := ids(3)
	require.NoError(t, g.AddEdge(n[0], n[1], "depends_on"))
	require.NoError(t, g.AddEdge(n[1], n[2], "depends_on"))

	var cycleErr *CycleError
	require.ErrorAs(t, g.AddEdge(n[2], n[0], "depends_on"), &cycleErr)
	require.Equal(t, n[2], cycleErr.Parent)
	require.Equal(t, n[0], cycleErr.Child)
	require.Equal(t, []uuid.UUID{n[0], n[1], n[2]}, cycleErr.Path)

	edges, err := g.Edges()
	require.NoError(t, err)
	require.Len(t, edges, 2)
}

func TestAddEdge_CycleAcrossEdgeTypes(t *testing.T) {
	// Acyclicity spans all relation types combined: a depends_on edge and a
	// reverse attached_to edge still form a cycle.
	g := newTestGraph()
	n := ids(2)
	require.NoError(t, g.AddEdge(n[0], n[1], "depends_on"))

	var cycleErr *CycleError
	require.ErrorAs(t, g.AddEdge(n[1], n[0], "attached_to"), &cycleErr)
}

func TestRemoveEdge(t *testing.T) {
	g := newTestGraph()
	n := ids(2)
	require.NoError(t, g.AddEdge(n[0], n[1], "depends_on"))
	require.NoError(t, g.RemoveEdge(n[0], n[1], "depends_on"))

	var notFound *NotFoundError
	require.ErrorAs(t, g.RemoveEdge(n[0], n[1], "depends_on"), &notFound)

	// Removal reopens the path for the reverse edge.
	require.NoError(t, g.AddEdge(n[1], n[0], "depends_on"))
}

func TestAncestorsAndDescendants(t *testing.T) {
	g := newTestGraph()
	n := ids(4)
	require.NoError(t, g.AddEdge(n[0], n[1], "part_of"))
	require.NoError(t, g.AddEdge(n[1], n[2], "part_of"))
	require.NoError(t, g.AddEdge(n[3], n[2], "depends_on"))

	desc, err := g.Descendants(n[0])
	require.NoError(t, err)
	require.Len(t, desc, 2)
	require.Contains(t, desc, n[1])
	require.Contains(t, desc, n[2])

	anc, err := g.Ancestors(n[2])
	require.NoError(t, err)
	require.Len(t, anc, 3)
	require.Contains(t, anc, n[0])
	require.Contains(t, anc, n[1])
	require.Contains(t, anc, n[3])
}

func TestAddEdge_ConcurrentInsertionsNeverFormCycle(t *testing.T) {
	g := newTestGraph()
	n := ids(2)

	// Two writers racing to insert opposite edges: at most one may win.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = g.AddEdge(n[0], n[1], "depends_on")
	}()
	go func() {
		defer wg.Done()
		errs[1] = g.AddEdge(n[1], n[0], "depends_on")
	}()
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		}
	}
	require.Equal(t, 1, wins)
}

func TestGraph_BusyAfterTimeout(t *testing.T) {
	g := NewGraph(50 * time.Millisecond)
	require.NoError(t, g.acquire())
	defer g.release()

	n := ids(2)
	var busy *BusyError
	require.ErrorAs(t, g.AddEdge(n[0], n[1], "depends_on"), &busy)
}
