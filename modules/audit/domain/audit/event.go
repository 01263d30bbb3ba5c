package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is one immutable audit record. Seq is assigned at append time and
// breaks ordering ties between events sharing an occurrence timestamp.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Seq        int64           `json:"seq"`
	SubjectID  uuid.UUID       `json:"subject_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	ActorID    *uuid.UUID      `json:"actor_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

const (
	TypeAssetAssigned     = "asset.assigned"
	TypeAssetReassigned   = "asset.reassigned"
	TypeAssetUnassigned   = "asset.unassigned"
	TypeLicenseAssigned   = "license.assigned"
	TypeLicenseUnassigned = "license.unassigned"
	TypeRelationAdded     = "relation.added"
	TypeRelationRemoved   = "relation.removed"
	TypeOrgParentChanged  = "orgunit.parent_changed"
)
