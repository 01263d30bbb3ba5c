package hierarchy

import (
	"time"

	"github.com/google/uuid"
)

// Tree is the single-parent specialization of Graph used for org units: each
// node has at most one parent edge and the ancestor chain from any node never
// reaches back to itself.
type Tree struct {
	timeout time.Duration

	sem    chan struct{}
	parent map[uuid.UUID]uuid.UUID
}

func NewTree(lockTimeout time.Duration) *Tree {
	t := &Tree{
		timeout: lockTimeout,
		sem:     make(chan struct{}, 1),
		parent:  make(map[uuid.UUID]uuid.UUID),
	}
	t.sem <- struct{}{}
	return t
}

func (t *Tree) acquire() error {
	timer := time.NewTimer(t.timeout)
	defer timer.Stop()
	select {
	case <-t.sem:
		return nil
	case <-timer.C:
		return &BusyError{Timeout: t.timeout}
	}
}

func (t *Tree) release() {
	t.sem <- struct{}{}
}

// SetParent attaches node under newParent, replacing any existing parent. A
// nil newParent detaches the node, making it a root. Attaching a node under
// itself or under one of its own descendants is rejected.
func (t *Tree) SetParent(node uuid.UUID, newParent *uuid.UUID) (previous *uuid.UUID, err error) {
	if err := t.acquire(); err != nil {
		return nil, err
	}
	defer t.release()

	if prev, ok := t.parent[node]; ok {
		p := prev
		previous = &p
	}

	if newParent == nil {
		delete(t.parent, node)
		return previous, nil
	}
	if *newParent == node {
		return nil, &SelfReferenceError{Node: node}
	}

	// Walk the ancestor chain of the proposed parent; reaching node means the
	// parent is a descendant of node. Visited set bounds the walk even if the
	// stored map were ever corrupted into a cycle.
	visited := map[uuid.UUID]struct{}{}
	path := []uuid.UUID{*newParent}
	for at := *newParent; ; {
		if at == node {
			return nil, &CycleError{Parent: *newParent, Child: node, Path: path}
		}
		if _, seen := visited[at]; seen {
			break
		}
		visited[at] = struct{}{}
		next, ok := t.parent[at]
		if !ok {
			break
		}
		at = next
		path = append(path, at)
	}

	t.parent[node] = *newParent
	return previous, nil
}

// Parent returns the node's parent, if attached.
func (t *Tree) Parent(node uuid.UUID) (uuid.UUID, bool, error) {
	if err := t.acquire(); err != nil {
		return uuid.Nil, false, err
	}
	defer t.release()
	p, ok := t.parent[node]
	return p, ok, nil
}

// Ancestors returns the chain from the node's parent up to its root.
func (t *Tree) Ancestors(node uuid.UUID) ([]uuid.UUID, error) {
	if err := t.acquire(); err != nil {
		return nil, err
	}
	defer t.release()

	var out []uuid.UUID
	visited := map[uuid.UUID]struct{}{node: {}}
	for at := node; ; {
		next, ok := t.parent[at]
		if !ok {
			return out, nil
		}
		if _, seen := visited[next]; seen {
			return out, nil
		}
		visited[next] = struct{}{}
		out = append(out, next)
		at = next
	}
}

// Restore loads a parent edge during warm-load with the same validation as
// SetParent.
func (t *Tree) Restore(node, parent uuid.UUID) error {
	_, err := t.SetParent(node, &parent)
	return err
}
