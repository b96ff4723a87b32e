package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// actor is everything the request pipeline knows about the caller. It is
// stored as one value and copied on every change.
type actor struct {
	userID    string
	role      string
	sessionID string
}

type actorKey struct{}

func actorFrom(ctx context.Context) actor {
	if ctx == nil {
		return actor{}
	}
	a, _ := ctx.Value(actorKey{}).(actor)
	return a
}

func withActor(ctx context.Context, a actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, a)
}

func UserIDFromContext(ctx context.Context) string { return actorFrom(ctx).userID }

func RoleFromContext(ctx context.Context) string { return actorFrom(ctx).role }

func SessionIDFromContext(ctx context.Context) string { return actorFrom(ctx).sessionID }

// IdentityFromContext resolves the cart and order owner for the request. An
// authenticated user wins over the anonymous session.
func IdentityFromContext(ctx context.Context) types.Identity {
	a := actorFrom(ctx)
	if a.userID != "" {
		if id, err := uuid.Parse(a.userID); err == nil && id != uuid.Nil {
			return types.UserIdentity(id)
		}
	}
	return types.SessionIdentity(a.sessionID)
}

func WithUser(ctx context.Context, userID, role string) context.Context {
	a := actorFrom(ctx)
	a.userID, a.role = userID, role
	return withActor(ctx, a)
}

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	a := actorFrom(ctx)
	a.sessionID = sessionID
	return withActor(ctx, a)
}
