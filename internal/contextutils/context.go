package contextutils

import (
	"context"

	"civicforge/internal/services"

	"github.com/gofrs/uuid"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	actorKey     contextKey = "actor"
)

// WithRequestID stores the request ID in the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the request ID, or empty string when absent
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithActor stores the authenticated actor in the context
func WithActor(ctx context.Context, actor services.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetActor returns the authenticated actor and whether one is present
func GetActor(ctx context.Context) (services.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(services.Actor)
	return actor, ok
}

// NewRequestID generates a fresh request ID
func NewRequestID() string {
	id, err := uuid.NewV4()
	if err != nil {
		return "unknown"
	}
	return id.String()
}
