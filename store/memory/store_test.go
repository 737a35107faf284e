package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/retreathq/authz/assignment"
	"github.com/retreathq/authz/decisionlog"
	"github.com/retreathq/authz/id"
	"github.com/retreathq/authz/permission"
	"github.com/retreathq/authz/request"
	"github.com/retreathq/authz/role"
	"github.com/retreathq/authz/store"
)

func TestRoleCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	r := &role.Role{
		ID:   id.NewRoleID(),
		Name: "Coordinator",
		Slug: "coordinator",
	}

	if err := s.CreateRole(ctx, r); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetRole(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Coordinator" {
		t.Fatalf("expected Coordinator, got %s", got.Name)
	}

	got, err = s.GetRoleBySlug(ctx, "coordinator")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != r.ID {
		t.Fatal("slug lookup mismatch")
	}

	r.Name = "Retreat Coordinator"
	if err := s.UpdateRole(ctx, r); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetRole(ctx, r.ID)
	if got.Name != "Retreat Coordinator" {
		t.Fatal("update failed")
	}

	list, _ := s.ListRoles(ctx, nil)
	if len(list) != 1 {
		t.Fatalf("expected 1 role, got %d", len(list))
	}
	count, _ := s.CountRoles(ctx, nil)
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}

	if err := s.DeleteRole(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetRole(ctx, r.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestRolePermissions(t *testing.T) {
	ctx := context.Background()
	s := New()

	r := &role.Role{ID: id.NewRoleID(), Name: "Leader", Slug: "leader"}
	if err := s.CreateRole(ctx, r); err != nil {
		t.Fatal(err)
	}

	p1 := &permission.Permission{ID: id.NewPermissionID(), Name: "session:create", Resource: "session", Operation: "create"}
	p2 := &permission.Permission{ID: id.NewPermissionID(), Name: "session:update", Resource: "session", Operation: "update"}
	if err := s.CreatePermission(ctx, p1); err != nil {
		t.Fatal(err)
	}
	if err := s.CreatePermission(ctx, p2); err != nil {
		t.Fatal(err)
	}

	if err := s.AttachPermission(ctx, r.ID, p1.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.AttachPermission(ctx, r.ID, p2.ID); err != nil {
		t.Fatal(err)
	}

	perms, _ := s.ListRolePermissions(ctx, r.ID)
	if len(perms) != 2 {
		t.Fatalf("expected 2 permissions, got %d", len(perms))
	}

	if err := s.DetachPermission(ctx, r.ID, p1.ID); err != nil {
		t.Fatal(err)
	}
	perms, _ = s.ListRolePermissions(ctx, r.ID)
	if len(perms) != 1 {
		t.Fatalf("expected 1 permission after detach, got %d", len(perms))
	}

	if err := s.SetRolePermissions(ctx, r.ID, []id.PermissionID{p1.ID, p2.ID}); err != nil {
		t.Fatal(err)
	}
	perms, _ = s.ListRolePermissions(ctx, r.ID)
	if len(perms) != 2 {
		t.Fatalf("expected 2 permissions after set, got %d", len(perms))
	}

	// Deleting a permission removes it from role mappings too.
	if err := s.DeletePermission(ctx, p1.ID); err != nil {
		t.Fatal(err)
	}
	perms, _ = s.ListRolePermissions(ctx, r.ID)
	if len(perms) != 1 {
		t.Fatalf("expected 1 permission after catalog delete, got %d", len(perms))
	}
}

func TestGlobalRoleBinding(t *testing.T) {
	ctx := context.Background()
	s := New()

	r := &role.Role{ID: id.NewRoleID(), Name: "Admin", Slug: "admin"}
	if err := s.CreateRole(ctx, r); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetGlobalRole(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsNil() {
		t.Fatal("expected nil role for unbound user")
	}

	if err := s.SetGlobalRole(ctx, "user-1", r.ID); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetGlobalRole(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if got != r.ID {
		t.Fatal("global role mismatch")
	}

	if err := s.SetGlobalRole(ctx, "user-1", id.NewRoleID()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown role, got %v", err)
	}

	if err := s.ClearGlobalRole(ctx, "user-1"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetGlobalRole(ctx, "user-1")
	if !got.IsNil() {
		t.Fatal("expected binding cleared")
	}

	// Deleting the role clears bindings to it.
	if err := s.SetGlobalRole(ctx, "user-2", r.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteRole(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetGlobalRole(ctx, "user-2")
	if !got.IsNil() {
		t.Fatal("expected binding removed with role")
	}
}

func TestAssignmentUpsert(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	a := &assignment.Assignment{
		ID:        id.NewAssignmentID(),
		UserID:    "user-1",
		RetreatID: "retreat-1",
		RoleID:    id.NewRoleID(),
		Status:    assignment.StatusPending,
		InvitedAt: now,
		UpdatedAt: now,
	}
	if err := s.SaveAssignment(ctx, a); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetAssignmentForUser(ctx, "user-1", "retreat-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != assignment.StatusPending {
		t.Fatalf("expected pending, got %s", got.Status)
	}

	// Saving again for the same pair keeps the row identity.
	replacement := &assignment.Assignment{
		ID:        id.NewAssignmentID(),
		UserID:    "user-1",
		RetreatID: "retreat-1",
		RoleID:    a.RoleID,
		Status:    assignment.StatusActive,
		InvitedAt: now,
		UpdatedAt: now,
	}
	if err := s.SaveAssignment(ctx, replacement); err != nil {
		t.Fatal(err)
	}
	if replacement.ID != a.ID {
		t.Fatal("upsert should keep the existing assignment ID")
	}
	count, _ := s.CountAssignments(ctx, &assignment.ListFilter{UserID: "user-1"})
	if count != 1 {
		t.Fatalf("expected 1 assignment, got %d", count)
	}

	got, _ = s.GetAssignment(ctx, a.ID)
	if got.Status != assignment.StatusActive {
		t.Fatal("replacement not applied")
	}

	// A different retreat is a separate row.
	other := &assignment.Assignment{
		ID:        id.NewAssignmentID(),
		UserID:    "user-1",
		RetreatID: "retreat-2",
		RoleID:    a.RoleID,
		Status:    assignment.StatusActive,
		InvitedAt: now,
	}
	if err := s.SaveAssignment(ctx, other); err != nil {
		t.Fatal(err)
	}
	count, _ = s.CountAssignments(ctx, &assignment.ListFilter{UserID: "user-1"})
	if count != 2 {
		t.Fatalf("expected 2 assignments, got %d", count)
	}

	if err := s.DeleteAssignmentsForUser(ctx, "user-1"); err != nil {
		t.Fatal(err)
	}
	count, _ = s.CountAssignments(ctx, nil)
	if count != 0 {
		t.Fatalf("expected 0 assignments, got %d", count)
	}
}

func TestAssignmentCopyIsolation(t *testing.T) {
	ctx := context.Background()
	s := New()

	a := &assignment.Assignment{
		ID:        id.NewAssignmentID(),
		UserID:    "user-1",
		RetreatID: "retreat-1",
		Status:    assignment.StatusActive,
		Overrides: []assignment.Override{{Resource: "payment", Operation: "delete", Granted: false}},
	}
	if err := s.SaveAssignment(ctx, a); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetAssignment(ctx, a.ID)
	got.Overrides[0].Granted = true

	again, _ := s.GetAssignment(ctx, a.ID)
	if again.Overrides[0].Granted {
		t.Fatal("stored overrides must not alias returned slices")
	}
}

func TestRequestUniquePending(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	r1 := &request.Request{
		ID:        id.NewRequestID(),
		UserID:    "user-1",
		RetreatID: "retreat-1",
		RoleID:    id.NewRoleID(),
		Status:    request.StatusPending,
		CreatedAt: now,
	}
	if err := s.CreateRequest(ctx, r1); err != nil {
		t.Fatal(err)
	}

	dup := &request.Request{
		ID:        id.NewRequestID(),
		UserID:    "user-1",
		RetreatID: "retreat-1",
		RoleID:    id.NewRoleID(),
		Status:    request.StatusPending,
		CreatedAt: now,
	}
	if err := s.CreateRequest(ctx, dup); !errors.Is(err, store.ErrDuplicatePending) {
		t.Fatalf("expected duplicate pending error, got %v", err)
	}

	// A pending request in another retreat is fine.
	other := &request.Request{
		ID:        id.NewRequestID(),
		UserID:    "user-1",
		RetreatID: "retreat-2",
		RoleID:    r1.RoleID,
		Status:    request.StatusPending,
		CreatedAt: now,
	}
	if err := s.CreateRequest(ctx, other); err != nil {
		t.Fatal(err)
	}

	// Once the pending request is resolved, a new one is allowed.
	if _, err := s.MarkRejected(ctx, r1.ID, "admin-1", "not this season", now); err != nil {
		t.Fatal(err)
	}
	retry := &request.Request{
		ID:        id.NewRequestID(),
		UserID:    "user-1",
		RetreatID: "retreat-1",
		RoleID:    r1.RoleID,
		Status:    request.StatusPending,
		CreatedAt: now,
	}
	if err := s.CreateRequest(ctx, retry); err != nil {
		t.Fatal(err)
	}
}

func TestMarkRejected(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	r := &request.Request{
		ID:        id.NewRequestID(),
		UserID:    "user-1",
		RetreatID: "retreat-1",
		RoleID:    id.NewRoleID(),
		Status:    request.StatusPending,
		CreatedAt: now,
	}
	if err := s.CreateRequest(ctx, r); err != nil {
		t.Fatal(err)
	}

	rejected, err := s.MarkRejected(ctx, r.ID, "admin-1", "capacity", now)
	if err != nil {
		t.Fatal(err)
	}
	if rejected.Status != request.StatusRejected || rejected.ResolvedBy != "admin-1" || rejected.Reason != "capacity" {
		t.Fatalf("unexpected rejected request: %+v", rejected)
	}
	if rejected.ResolvedAt == nil {
		t.Fatal("expected resolved timestamp")
	}

	// Rejecting twice fails.
	if _, err := s.MarkRejected(ctx, r.ID, "admin-1", "again", now); !errors.Is(err, store.ErrNotPending) {
		t.Fatalf("expected not pending error, got %v", err)
	}
	// Approving a rejected request fails too.
	if _, _, err := s.ApproveRequest(ctx, r.ID, "admin-1", now); !errors.Is(err, store.ErrNotPending) {
		t.Fatalf("expected not pending error, got %v", err)
	}
}

func TestApproveRequest(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()
	roleID := id.NewRoleID()

	req := &request.Request{
		ID:        id.NewRequestID(),
		UserID:    "user-1",
		RetreatID: "retreat-1",
		RoleID:    roleID,
		Status:    request.StatusPending,
		CreatedAt: now,
	}
	if err := s.CreateRequest(ctx, req); err != nil {
		t.Fatal(err)
	}

	approved, a, err := s.ApproveRequest(ctx, req.ID, "admin-1", now)
	if err != nil {
		t.Fatal(err)
	}
	if approved.Status != request.StatusApproved || approved.ResolvedBy != "admin-1" {
		t.Fatalf("unexpected approved request: %+v", approved)
	}
	if a.Status != assignment.StatusActive || a.RoleID != roleID {
		t.Fatalf("unexpected assignment: %+v", a)
	}

	got, err := s.GetAssignmentForUser(ctx, "user-1", "retreat-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != a.ID {
		t.Fatal("assignment not persisted")
	}

	// Approving again fails and leaves the assignment untouched.
	if _, _, err := s.ApproveRequest(ctx, req.ID, "admin-2", now); !errors.Is(err, store.ErrNotPending) {
		t.Fatalf("expected not pending error, got %v", err)
	}
}

func TestApproveRequestReplacesExistingAssignment(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	existing := &assignment.Assignment{
		ID:        id.NewAssignmentID(),
		UserID:    "user-1",
		RetreatID: "retreat-1",
		RoleID:    id.NewRoleID(),
		Status:    assignment.StatusRevoked,
		InvitedAt: now.Add(-time.Hour),
	}
	if err := s.SaveAssignment(ctx, existing); err != nil {
		t.Fatal(err)
	}

	newRole := id.NewRoleID()
	req := &request.Request{
		ID:        id.NewRequestID(),
		UserID:    "user-1",
		RetreatID: "retreat-1",
		RoleID:    newRole,
		Status:    request.StatusPending,
		CreatedAt: now,
	}
	if err := s.CreateRequest(ctx, req); err != nil {
		t.Fatal(err)
	}

	_, a, err := s.ApproveRequest(ctx, req.ID, "admin-1", now)
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != existing.ID {
		t.Fatal("approval should reuse the existing assignment row")
	}
	if a.RoleID != newRole || a.Status != assignment.StatusActive {
		t.Fatalf("unexpected assignment after approval: %+v", a)
	}
	count, _ := s.CountAssignments(ctx, &assignment.ListFilter{UserID: "user-1", RetreatID: "retreat-1"})
	if count != 1 {
		t.Fatalf("expected 1 assignment, got %d", count)
	}
}

func TestDecisionLog(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	for i := 0; i < 3; i++ {
		e := &decisionlog.Entry{
			ID:         id.NewDecisionLogID(),
			UserID:     "user-1",
			RetreatID:  "retreat-1",
			Permission: "participant:update",
			Allowed:    i%2 == 0,
			Decision:   "allow",
			Reason:     "retreat-role",
			CreatedAt:  now.Add(time.Duration(i) * time.Minute),
		}
		if err := s.CreateEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.ListEntries(ctx, &decisionlog.QueryFilter{UserID: "user-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(list))
	}
	if list[0].CreatedAt.Before(list[1].CreatedAt) {
		t.Fatal("expected newest-first ordering")
	}

	allowed := true
	count, _ := s.CountEntries(ctx, &decisionlog.QueryFilter{Allowed: &allowed})
	if count != 2 {
		t.Fatalf("expected 2 allowed entries, got %d", count)
	}

	purged, err := s.PurgeEntries(ctx, now.Add(30*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged entry, got %d", purged)
	}
	count, _ = s.CountEntries(ctx, nil)
	if count != 2 {
		t.Fatalf("expected 2 remaining entries, got %d", count)
	}
}

func TestListPagination(t *testing.T) {
	ctx := context.Background()
	s := New()

	slugs := []string{"admin", "coordinator", "leader", "regular", "superadmin"}
	for _, slug := range slugs {
		r := &role.Role{ID: id.NewRoleID(), Name: slug, Slug: slug}
		if err := s.CreateRole(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	page, _ := s.ListRoles(ctx, &role.ListFilter{Limit: 2, Offset: 1})
	if len(page) != 2 {
		t.Fatalf("expected 2 roles, got %d", len(page))
	}
	if page[0].Slug != "coordinator" || page[1].Slug != "leader" {
		t.Fatalf("unexpected page: %s, %s", page[0].Slug, page[1].Slug)
	}

	empty, _ := s.ListRoles(ctx, &role.ListFilter{Offset: 10})
	if len(empty) != 0 {
		t.Fatalf("expected empty page, got %d", len(empty))
	}
}
