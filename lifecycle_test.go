package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/retreathq/authz/assignment"
	"github.com/retreathq/authz/id"
)

func TestInviteAcceptFlow(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)
	coordinator := roleID(t, eng, "coordinator")

	a, err := eng.Invite(ctx, InviteParams{UserID: "u1", RetreatID: "r1", RoleID: coordinator, InvitedBy: "admin-1"})
	if err != nil {
		t.Fatal(err)
	}
	if a.Status != assignment.StatusPending {
		t.Fatalf("expected pending, got %s", a.Status)
	}

	// A pending assignment grants nothing.
	v, _ := eng.Decide(ctx, Query{UserID: "u1", Permission: "participant:update", RetreatID: "r1"})
	if v.Allowed {
		t.Fatal("pending assignment must not grant")
	}

	accepted, err := eng.Accept(ctx, "u1", "r1")
	if err != nil {
		t.Fatal(err)
	}
	if accepted.Status != assignment.StatusActive {
		t.Fatalf("expected active, got %s", accepted.Status)
	}

	v, _ = eng.Decide(ctx, Query{UserID: "u1", Permission: "participant:update", RetreatID: "r1"})
	if !v.Allowed {
		t.Fatal("active assignment should grant")
	}

	// Accepting twice fails.
	if _, err := eng.Accept(ctx, "u1", "r1"); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected not pending, got %v", err)
	}
}

func TestInvite_UnknownRole(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	_, err := eng.Invite(ctx, InviteParams{UserID: "u1", RetreatID: "r1", RoleID: id.NewRoleID()})
	if !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("expected role not found, got %v", err)
	}
}

func TestInvite_OverActiveAssignment(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)
	coordinator := roleID(t, eng, "coordinator")
	leader := roleID(t, eng, "leader")

	activate(t, eng, "u1", "r1", coordinator)

	// Re-inviting over an active assignment fails without Replace.
	if _, err := eng.Invite(ctx, InviteParams{UserID: "u1", RetreatID: "r1", RoleID: leader}); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("expected already active, got %v", err)
	}

	// With Replace the assignment is rebuilt as a pending invitation.
	a, err := eng.Invite(ctx, InviteParams{UserID: "u1", RetreatID: "r1", RoleID: leader, Replace: true})
	if err != nil {
		t.Fatal(err)
	}
	if a.Status != assignment.StatusPending || a.RoleID != leader {
		t.Fatalf("unexpected replacement: %+v", a)
	}
	v, _ := eng.Decide(ctx, Query{UserID: "u1", Permission: "participant:update", RetreatID: "r1"})
	if v.Allowed {
		t.Fatal("replaced assignment is pending again and must not grant")
	}
}

func TestInvite_OverRevokedAssignment(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)
	coordinator := roleID(t, eng, "coordinator")

	activate(t, eng, "u1", "r1", coordinator)
	if _, err := eng.Revoke(ctx, "u1", "r1"); err != nil {
		t.Fatal(err)
	}

	// Revoked assignments can be re-invited freely.
	a, err := eng.Invite(ctx, InviteParams{UserID: "u1", RetreatID: "r1", RoleID: coordinator})
	if err != nil {
		t.Fatal(err)
	}
	if a.Status != assignment.StatusPending {
		t.Fatalf("expected pending, got %s", a.Status)
	}
	if len(a.Overrides) != 0 {
		t.Fatal("re-invite must not carry old overrides")
	}
}

func TestAccept_ExpiredInvitation(t *testing.T) {
	ctx := context.Background()
	eng, _, clk := newTestEngine(t)

	deadline := clk.Now().Add(time.Hour)
	if _, err := eng.Invite(ctx, InviteParams{
		UserID: "u1", RetreatID: "r1", RoleID: roleID(t, eng, "coordinator"), ExpiresAt: &deadline,
	}); err != nil {
		t.Fatal(err)
	}

	clk.Advance(2 * time.Hour)
	if _, err := eng.Accept(ctx, "u1", "r1"); !errors.Is(err, ErrInvitationExpired) {
		t.Fatalf("expected invitation expired, got %v", err)
	}

	// The expired invitation contributes no grants.
	v, _ := eng.Decide(ctx, Query{UserID: "u1", Permission: "participant:update", RetreatID: "r1"})
	if v.Allowed {
		t.Fatal("expired invitation must not grant")
	}

	// Re-inviting resets the window.
	fresh := clk.Now().Add(time.Hour)
	if _, err := eng.Invite(ctx, InviteParams{
		UserID: "u1", RetreatID: "r1", RoleID: roleID(t, eng, "coordinator"), ExpiresAt: &fresh,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Accept(ctx, "u1", "r1"); err != nil {
		t.Fatal(err)
	}
}

func TestInvite_DefaultInvitationTTL(t *testing.T) {
	ctx := context.Background()
	eng, _, clk := newTestEngine(t, WithConfig(Config{DefaultInvitationTTL: time.Hour}))

	a, err := eng.Invite(ctx, InviteParams{UserID: "u1", RetreatID: "r1", RoleID: roleID(t, eng, "leader")})
	if err != nil {
		t.Fatal(err)
	}
	if a.ExpiresAt == nil || !a.ExpiresAt.Equal(clk.Now().Add(time.Hour)) {
		t.Fatalf("expected expiry one hour out, got %v", a.ExpiresAt)
	}
}

func TestRevoke_Idempotent(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	activate(t, eng, "u1", "r1", roleID(t, eng, "coordinator"))

	a, err := eng.Revoke(ctx, "u1", "r1")
	if err != nil {
		t.Fatal(err)
	}
	if a.Status != assignment.StatusRevoked {
		t.Fatalf("expected revoked, got %s", a.Status)
	}

	v, _ := eng.Decide(ctx, Query{UserID: "u1", Permission: "participant:update", RetreatID: "r1"})
	if v.Allowed {
		t.Fatal("revoked assignment must not grant")
	}

	// Revoking again is a no-op.
	if _, err := eng.Revoke(ctx, "u1", "r1"); err != nil {
		t.Fatal(err)
	}

	// Revoking a membership that never existed is a no-op too.
	a, err = eng.Revoke(ctx, "u1", "r9")
	if err != nil {
		t.Fatal(err)
	}
	if a != nil {
		t.Fatal("expected nil assignment for missing membership")
	}

	// A revoked assignment cannot be accepted back.
	if _, err := eng.Accept(ctx, "u1", "r1"); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected not pending, got %v", err)
	}
}

func TestSetOverrides_Validation(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	activate(t, eng, "u1", "r1", roleID(t, eng, "leader"))

	_, err := eng.SetOverrides(ctx, "u1", "r1", []assignment.Override{
		{Resource: "spaceship", Operation: "launch", Granted: true},
	})
	if !errors.Is(err, ErrPermissionNotFound) {
		t.Fatalf("expected permission not found, got %v", err)
	}

	_, err = eng.SetOverrides(ctx, "u1", "r9", []assignment.Override{
		{Resource: "payment", Operation: "read", Granted: true},
	})
	if !errors.Is(err, ErrAssignmentNotFound) {
		t.Fatalf("expected assignment not found, got %v", err)
	}

	// Replacing overrides drops the previous set.
	if _, err := eng.SetOverrides(ctx, "u1", "r1", []assignment.Override{
		{Resource: "payment", Operation: "read", Granted: true},
	}); err != nil {
		t.Fatal(err)
	}
	a, err := eng.SetOverrides(ctx, "u1", "r1", []assignment.Override{
		{Resource: "report", Operation: "view", Granted: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Overrides) != 1 || a.Overrides[0].Name() != "report:view" {
		t.Fatalf("unexpected overrides: %+v", a.Overrides)
	}
	v, _ := eng.Decide(ctx, Query{UserID: "u1", Permission: "payment:read", RetreatID: "r1"})
	if v.Allowed {
		t.Fatal("replaced override must stop granting")
	}
}
