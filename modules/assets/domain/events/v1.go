package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TopicAssetAssignmentChangedV1   = "itam.asset.assignment.changed.v1"
	TopicLicenseAssignmentChangedV1 = "itam.license.assignment.changed.v1"
	TopicRelationChangedV1          = "itam.relation.changed.v1"
	TopicOrgUnitChangedV1           = "itam.orgunit.changed.v1"
	EventVersionV1                  = 1
)

type AssignmentEventV1 struct {
	EventID      uuid.UUID       `json:"event_id"`
	EventVersion int             `json:"event_version"`
	Topic        string          `json:"topic"`
	RequestID    string          `json:"request_id"`
	OccurredAt   time.Time       `json:"occurred_at"`
	ActorID      *uuid.UUID      `json:"actor_id,omitempty"`
	ChangeType   string          `json:"change_type"`
	SubjectKey   string          `json:"subject_key"`
	IntervalID   uuid.UUID       `json:"interval_id"`
	From         time.Time       `json:"from"`
	To           *time.Time      `json:"to,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

type HierarchyEventV1 struct {
	EventID      uuid.UUID  `json:"event_id"`
	EventVersion int        `json:"event_version"`
	Topic        string     `json:"topic"`
	RequestID    string     `json:"request_id"`
	OccurredAt   time.Time  `json:"occurred_at"`
	ActorID      *uuid.UUID `json:"actor_id,omitempty"`
	ChangeType   string     `json:"change_type"`
	ParentID     *uuid.UUID `json:"parent_id,omitempty"`
	ChildID      uuid.UUID  `json:"child_id"`
	EdgeType     string     `json:"edge_type,omitempty"`
}
