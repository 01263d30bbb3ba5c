package assignment

import (
	"fmt"

	"github.com/google/uuid"
)

// TargetMissingError reports an assignment with no recipient at all.
type TargetMissingError struct {
	Subject uuid.UUID
	Allowed []TargetKind
}

func (e *TargetMissingError) Error() string {
	return fmt.Sprintf("assignment for %s needs at least one target of %v", e.Subject, e.Allowed)
}

// TargetConflictError reports a license assignment naming more than one
// target. License seats are exclusive-or: a person or an asset, never both.
type TargetConflictError struct {
	Subject  uuid.UUID
	Provided []TargetKind
}

func (e *TargetConflictError) Error() string {
	return fmt.Sprintf("assignment for %s names %v, exactly one target is allowed", e.Subject, e.Provided)
}
