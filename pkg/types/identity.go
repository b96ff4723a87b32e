package types

import (
	"strings"

	"github.com/google/uuid"
)

// Identity is who owns a cart or order: an authenticated user or an anonymous
// session. A user id takes precedence when both are present.
type Identity struct {
	UserID    *uuid.UUID
	SessionID string
}

// UserIdentity builds an Identity for an authenticated user.
func UserIdentity(userID uuid.UUID) Identity {
	return Identity{UserID: &userID}
}

// SessionIdentity builds an Identity for an anonymous session.
func SessionIdentity(sessionID string) Identity {
	return Identity{SessionID: strings.TrimSpace(sessionID)}
}

// IsUser reports whether the identity belongs to an authenticated user.
func (i Identity) IsUser() bool {
	return i.UserID != nil && *i.UserID != uuid.Nil
}

// IsZero reports whether neither key is set.
func (i Identity) IsZero() bool {
	return !i.IsUser() && strings.TrimSpace(i.SessionID) == ""
}

// Session returns the session id as a pointer for persistence, nil for users.
func (i Identity) Session() *string {
	if i.IsUser() {
		return nil
	}
	sid := strings.TrimSpace(i.SessionID)
	if sid == "" {
		return nil
	}
	return &sid
}

// User returns the user id for persistence, nil for sessions.
func (i Identity) User() *uuid.UUID {
	if !i.IsUser() {
		return nil
	}
	id := *i.UserID
	return &id
}
