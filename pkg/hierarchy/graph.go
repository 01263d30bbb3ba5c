package hierarchy

import (
	"time"

	"github.com/google/uuid"
)

// Edge is a directed parent -> child link of a given type.
type Edge struct {
	Parent uuid.UUID
	Child  uuid.UUID
	Type   string
}

// Graph is a multi-parent directed graph that stays acyclic across all edge
// types combined. Mutations are serialized on a single whole-graph lock:
// concurrent insertions can jointly form a cycle that neither one alone would,
// so per-edge locking is not sound. Acquisition is bounded and surfaces a
// BusyError on timeout.
type Graph struct {
	timeout time.Duration

	sem      chan struct{}
	children map[uuid.UUID]map[uuid.UUID]map[string]struct{}
	parents  map[uuid.UUID]map[uuid.UUID]map[string]struct{}
}

func NewGraph(lockTimeout time.Duration) *Graph {
	g := &Graph{
		timeout:  lockTimeout,
		sem:      make(chan struct{}, 1),
		children: make(map[uuid.UUID]map[uuid.UUID]map[string]struct{}),
		parents:  make(map[uuid.UUID]map[uuid.UUID]map[string]struct{}),
	}
	g.sem <- struct{}{}
	return g
}

func (g *Graph) acquire() error {
	timer := time.NewTimer(g.timeout)
	defer timer.Stop()
	select {
	case <-g.sem:
		return nil
	case <-timer.C:
		return &BusyError{Timeout: g.timeout}
	}
}

func (g *Graph) release() {
	g.sem <- struct{}{}
}

// AddEdge inserts parent -> child of the given type. Self-loops are rejected,
// exact duplicate triples are rejected as redundant, and any edge whose
// insertion would make parent reachable from child is rejected as a cycle.
func (g *Graph) AddEdge(parent, child uuid.UUID, edgeType string) error {
	if parent == child {
		return &SelfReferenceError{Node: parent}
	}
	if err := g.acquire(); err != nil {
		return err
	}
	defer g.release()

	if g.hasEdge(parent, child, edgeType) {
		return &DuplicateError{Edge: Edge{Parent: parent, Child: child, Type: edgeType}}
	}
	if path, found := g.pathBetween(child, parent); found {
		return &CycleError{Parent: parent, Child: child, Path: path}
	}

	addLink(g.children, parent, child, edgeType)
	addLink(g.parents, child, parent, edgeType)
	return nil
}

func (g *Graph) RemoveEdge(parent, child uuid.UUID, edgeType string) error {
	if err := g.acquire(); err != nil {
		return err
	}
	defer g.release()

	if !g.hasEdge(parent, child, edgeType) {
		return &NotFoundError{Edge: Edge{Parent: parent, Child: child, Type: edgeType}}
	}
	removeLink(g.children, parent, child, edgeType)
	removeLink(g.parents, child, parent, edgeType)
	return nil
}

// Restore inserts an edge during warm-load with the same validation as
// AddEdge.
func (g *Graph) Restore(e Edge) error {
	return g.AddEdge(e.Parent, e.Child, e.Type)
}

// Ancestors returns every node from which the given node is reachable,
// computed by traversal over the reverse adjacency.
func (g *Graph) Ancestors(node uuid.UUID) (map[uuid.UUID]struct{}, error) {
	if err := g.acquire(); err != nil {
		return nil, err
	}
	defer g.release()
	return reachable(g.parents, node), nil
}

// Descendants returns every node reachable from the given node.
func (g *Graph) Descendants(node uuid.UUID) (map[uuid.UUID]struct{}, error) {
	if err := g.acquire(); err != nil {
		return nil, err
	}
	defer g.release()
	return reachable(g.children, node), nil
}

// Edges returns a snapshot of all edges, unordered.
func (g *Graph) Edges() ([]Edge, error) {
	if err := g.acquire(); err != nil {
		return nil, err
	}
	defer g.release()

	var out []Edge
	for parent, kids := range g.children {
		for child, types := range kids {
			for t := range types {
				out = append(out, Edge{Parent: parent, Child: child, Type: t})
			}
		}
	}
	return out, nil
}

func (g *Graph) hasEdge(parent, child uuid.UUID, edgeType string) bool {
	types, ok := g.children[parent][child]
	if !ok {
		return false
	}
	_, ok = types[edgeType]
	return ok
}

// pathBetween runs a breadth-first search from start over outgoing edges and
// returns the node chain to target when one exists. The visited set bounds
// the traversal on any input.
func (g *Graph) pathBetween(start, target uuid.UUID) ([]uuid.UUID, bool) {
	if start == target {
		return []uuid.UUID{start}, true
	}
	visited := map[uuid.UUID]struct{}{start: {}}
	prev := map[uuid.UUID]uuid.UUID{}
	queue := []uuid.UUID{start}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for next := range g.children[node] {
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			prev[next] = node
			if next == target {
				path := []uuid.UUID{target}
				for at := target; at != start; {
					at = prev[at]
					path = append([]uuid.UUID{at}, path...)
				}
				return path, true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

func reachable(adj map[uuid.UUID]map[uuid.UUID]map[string]struct{}, start uuid.UUID) map[uuid.UUID]struct{} {
	out := make(map[uuid.UUID]struct{})
	queue := []uuid.UUID{start}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for next := range adj[node] {
			if _, seen := out[next]; seen {
				continue
			}
			out[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return out
}

func addLink(adj map[uuid.UUID]map[uuid.UUID]map[string]struct{}, from, to uuid.UUID, edgeType string) {
	if adj[from] == nil {
		adj[from] = make(map[uuid.UUID]map[string]struct{})
	}
	if adj[from][to] == nil {
		adj[from][to] = make(map[string]struct{})
	}
	adj[from][to][edgeType] = struct{}{}
}

func removeLink(adj map[uuid.UUID]map[uuid.UUID]map[string]struct{}, from, to uuid.UUID, edgeType string) {
	delete(adj[from][to], edgeType)
	if len(adj[from][to]) == 0 {
		delete(adj[from], to)
	}
	if len(adj[from]) == 0 {
		delete(adj, from)
	}
}
