package relation

import (
	"github.com/google/uuid"
)

// Type labels a directed parent -> child asset relation. The set is open:
// unknown labels are stored as-is, acyclicity is enforced across all of them
// combined.
type Type string

const (
	DependsOn  Type = "depends_on"
	AttachedTo Type = "attached_to"
	PartOf     Type = "part_of"
)

type Relation struct {
	ParentID uuid.UUID
	ChildID  uuid.UUID
	Type     Type
}
