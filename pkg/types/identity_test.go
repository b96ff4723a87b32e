package types

import (
	"testing"

	"github.com/google/uuid"
)

func TestIdentityKeys(t *testing.T) {
	userID := uuid.New()
	user := UserIdentity(userID)
	if !user.IsUser() || user.IsZero() {
		t.Fatalf("expected user identity")
	}
	if user.Session() != nil {
		t.Fatalf("expected no session for user identity")
	}
	if got := user.User(); got == nil || *got != userID {
		t.Fatalf("unexpected user id %v", got)
	}

	both := Identity{UserID: &userID, SessionID: "abc"}
	if both.Session() != nil {
		t.Fatalf("expected user id to take precedence over session")
	}

	session := SessionIdentity("  sess-1 ")
	if session.IsUser() || session.IsZero() {
		t.Fatalf("expected session identity")
	}
	if got := session.Session(); got == nil || *got != "sess-1" {
		t.Fatalf("unexpected session %v", got)
	}

	nilUser := uuid.Nil
	if !(Identity{UserID: &nilUser}).IsZero() {
		t.Fatalf("expected nil uuid to count as empty")
	}
	if !(Identity{}).IsZero() {
		t.Fatalf("expected empty identity")
	}
}
