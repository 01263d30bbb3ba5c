package hierarchy

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SelfReferenceError struct {
	Node uuid.UUID
}

func (e *SelfReferenceError) Error() string {
	return fmt.Sprintf("hierarchy: %s may not reference itself", e.Node)
}

// CycleError reports a rejected edge that would close a cycle. Path holds the
// existing chain from the edge's child back to its parent.
type CycleError struct {
	Parent uuid.UUID
	Child  uuid.UUID
	Path   []uuid.UUID
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("hierarchy: edge %s -> %s would close a cycle", e.Parent, e.Child)
}

type DuplicateError struct {
	Edge Edge
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("hierarchy: edge %s -> %s (%s) already exists", e.Edge.Parent, e.Edge.Child, e.Edge.Type)
}

type NotFoundError struct {
	Edge Edge
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("hierarchy: edge %s -> %s (%s) not found", e.Edge.Parent, e.Edge.Child, e.Edge.Type)
}

// BusyError is returned when the graph lock could not be acquired within the
// bounded timeout. Retryable.
type BusyError struct {
	Timeout time.Duration
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("hierarchy: graph busy after %s", e.Timeout)
}
