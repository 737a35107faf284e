package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/retreathq/authz/assignment"
	"github.com/retreathq/authz/id"
	"github.com/retreathq/authz/request"
)

func TestRequestApproveFlow(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)
	coordinator := roleID(t, eng, "coordinator")

	r, err := eng.FileRequest(ctx, FileRequestParams{
		UserID: "u1", RetreatID: "r1", RoleID: coordinator, Message: "ran last year's retreat",
	})
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != request.StatusPending {
		t.Fatalf("expected pending, got %s", r.Status)
	}

	// Filing grants nothing until approved.
	v, _ := eng.Decide(ctx, Query{UserID: "u1", Permission: "participant:update", RetreatID: "r1"})
	if v.Allowed {
		t.Fatal("pending request must not grant")
	}

	approved, a, err := eng.ApproveRequest(ctx, r.ID, "admin-1")
	if err != nil {
		t.Fatal(err)
	}
	if approved.Status != request.StatusApproved || approved.ResolvedBy != "admin-1" {
		t.Fatalf("unexpected approved request: %+v", approved)
	}
	if a.Status != assignment.StatusActive || a.RoleID != coordinator {
		t.Fatalf("unexpected assignment: %+v", a)
	}

	// Approval activates the role without a separate accept step.
	v, _ = eng.Decide(ctx, Query{UserID: "u1", Permission: "participant:update", RetreatID: "r1"})
	if !v.Allowed {
		t.Fatal("approved request should grant")
	}

	// Approving a resolved request fails.
	if _, _, err := eng.ApproveRequest(ctx, r.ID, "admin-2"); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected not pending, got %v", err)
	}
}

func TestFileRequest_DuplicatePending(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)
	coordinator := roleID(t, eng, "coordinator")
	leader := roleID(t, eng, "leader")

	if _, err := eng.FileRequest(ctx, FileRequestParams{UserID: "u1", RetreatID: "r1", RoleID: coordinator}); err != nil {
		t.Fatal(err)
	}

	// A second pending request for the same retreat fails, even for a
	// different role.
	_, err := eng.FileRequest(ctx, FileRequestParams{UserID: "u1", RetreatID: "r1", RoleID: leader})
	if !errors.Is(err, ErrDuplicatePendingRequest) {
		t.Fatalf("expected duplicate pending, got %v", err)
	}

	// Another retreat is a separate scope.
	if _, err := eng.FileRequest(ctx, FileRequestParams{UserID: "u1", RetreatID: "r2", RoleID: leader}); err != nil {
		t.Fatal(err)
	}
}

func TestFileRequest_UnknownRole(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	_, err := eng.FileRequest(ctx, FileRequestParams{UserID: "u1", RetreatID: "r1", RoleID: id.NewRoleID()})
	if !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("expected role not found, got %v", err)
	}
}

func TestRejectRequest(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)
	coordinator := roleID(t, eng, "coordinator")

	r, err := eng.FileRequest(ctx, FileRequestParams{UserID: "u1", RetreatID: "r1", RoleID: coordinator})
	if err != nil {
		t.Fatal(err)
	}

	rejected, err := eng.RejectRequest(ctx, r.ID, "admin-1", "retreat is full")
	if err != nil {
		t.Fatal(err)
	}
	if rejected.Status != request.StatusRejected || rejected.Reason != "retreat is full" {
		t.Fatalf("unexpected rejected request: %+v", rejected)
	}

	// Rejection leaves the assignment table untouched.
	if _, err := eng.Assignment(ctx, "u1", "r1"); !errors.Is(err, ErrAssignmentNotFound) {
		t.Fatalf("expected no assignment, got %v", err)
	}

	// A resolved request frees the user to file again.
	if _, err := eng.FileRequest(ctx, FileRequestParams{UserID: "u1", RetreatID: "r1", RoleID: coordinator}); err != nil {
		t.Fatal(err)
	}

	// Rejecting twice fails; rejecting an unknown request reports not found.
	if _, err := eng.RejectRequest(ctx, r.ID, "admin-1", "again"); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected not pending, got %v", err)
	}
	if _, err := eng.RejectRequest(ctx, id.NewRequestID(), "admin-1", "missing"); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected request not found, got %v", err)
	}
}

func TestApproveRequest_ReplacesRevokedAssignment(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)
	coordinator := roleID(t, eng, "coordinator")
	leader := roleID(t, eng, "leader")

	activate(t, eng, "u1", "r1", leader)
	if _, err := eng.Revoke(ctx, "u1", "r1"); err != nil {
		t.Fatal(err)
	}

	r, err := eng.FileRequest(ctx, FileRequestParams{UserID: "u1", RetreatID: "r1", RoleID: coordinator})
	if err != nil {
		t.Fatal(err)
	}
	_, a, err := eng.ApproveRequest(ctx, r.ID, "admin-1")
	if err != nil {
		t.Fatal(err)
	}
	if a.RoleID != coordinator || a.Status != assignment.StatusActive {
		t.Fatalf("unexpected assignment: %+v", a)
	}

	v, _ := eng.Decide(ctx, Query{UserID: "u1", Permission: "participant:update", RetreatID: "r1"})
	if !v.Allowed {
		t.Fatal("approved coordinator role should grant")
	}
}

func TestAdmin_SystemRoleImmutable(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)
	admin := roleID(t, eng, "admin")

	name := "renamed"
	if _, err := eng.UpdateRole(ctx, admin, RoleUpdate{Name: &name}); !errors.Is(err, ErrSystemRoleImmutable) {
		t.Fatalf("expected system role immutable, got %v", err)
	}
	if err := eng.DeleteRole(ctx, admin); !errors.Is(err, ErrSystemRoleImmutable) {
		t.Fatalf("expected system role immutable, got %v", err)
	}
}

func TestAdmin_RegistryReload(t *testing.T) {
	ctx := context.Background()
	eng, s, _ := newTestEngine(t)

	// A freshly created role is usable for invitations immediately.
	r, err := eng.CreateRole(ctx, RoleParams{Name: "Chef", Slug: "chef", Description: "Runs the kitchen"})
	if err != nil {
		t.Fatal(err)
	}
	p, err := s.GetPermissionByName(ctx, "session:read")
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.SetRolePermissions(ctx, r.ID, []id.PermissionID{p.ID}); err != nil {
		t.Fatal(err)
	}

	activate(t, eng, "u1", "r1", r.ID)
	v, _ := eng.Decide(ctx, Query{UserID: "u1", Permission: "session:read", RetreatID: "r1"})
	if !v.Allowed {
		t.Fatal("new role should grant after reload")
	}

	// Detaching the permission takes effect without restarting the engine.
	if err := eng.DetachPermission(ctx, r.ID, p.ID); err != nil {
		t.Fatal(err)
	}
	v, _ = eng.Decide(ctx, Query{UserID: "u1", Permission: "session:read", RetreatID: "r1"})
	if v.Allowed {
		t.Fatal("detached permission should stop granting")
	}
}
