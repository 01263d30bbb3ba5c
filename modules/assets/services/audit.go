package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/itamops/assetman/modules/audit/domain/audit"
	"github.com/itamops/assetman/pkg/composables"
)

// appendAuditEvent writes one audit record inside the caller's transaction,
// resolving the acting principal from the context.
func appendAuditEvent(ctx context.Context, log AuditLog, subjectID uuid.UUID, eventType string, payload any) error {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		raw = b
	}
	e := &audit.Event{
		SubjectID: subjectID,
		EventType: eventType,
		Payload:   raw,
	}
	if actor, ok := composables.UseActor(ctx); ok {
		e.ActorID = &actor
	}
	return log.Append(ctx, e)
}
