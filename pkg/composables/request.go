package composables

import (
	"context"

	"github.com/google/uuid"

	"github.com/itamops/assetman/pkg/constants"
)

func WithActor(ctx context.Context, actorID uuid.UUID) context.Context {
	return context.WithValue(ctx, constants.ActorKey, actorID)
}

// UseActor returns the acting principal, if the service layer supplied one.
// Audit events record a nil actor for system-initiated mutations.
func UseActor(ctx context.Context) (uuid.UUID, bool) {
	actor, ok := ctx.Value(constants.ActorKey).(uuid.UUID)
	if !ok || actor == uuid.Nil {
		return uuid.Nil, false
	}
	return actor, true
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, constants.RequestIDKey, requestID)
}

func UseRequestID(ctx context.Context) string {
	id, _ := ctx.Value(constants.RequestIDKey).(string)
	return id
}
