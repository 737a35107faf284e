package plugin

import (
	"context"
	"log/slog"
	"testing"

	"github.com/retreathq/authz/assignment"
	"github.com/retreathq/authz/id"
	"github.com/retreathq/authz/role"
)

// testPlugin implements Plugin + RoleCreated + AfterDecide + UserInvited.
type testPlugin struct {
	roleCreatedCalled bool
	afterDecideCalled bool
	userInvitedCalled bool
}

func (t *testPlugin) Name() string { return "test-plugin" }

func (t *testPlugin) OnRoleCreated(_ context.Context, _ *role.Role) error {
	t.roleCreatedCalled = true
	return nil
}

func (t *testPlugin) OnAfterDecide(_ context.Context, _, _ any) error {
	t.afterDecideCalled = true
	return nil
}

func (t *testPlugin) OnUserInvited(_ context.Context, _ *assignment.Assignment) error {
	t.userInvitedCalled = true
	return nil
}

// minimalPlugin only implements Plugin (no hooks).
type minimalPlugin struct{}

func (m *minimalPlugin) Name() string { return "minimal" }

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(slog.Default())

	tp := &testPlugin{}
	reg.Register(tp)
	reg.Register(&minimalPlugin{})

	if len(reg.Plugins()) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(reg.Plugins()))
	}

	// Should dispatch RoleCreated to testPlugin only.
	reg.EmitRoleCreated(ctx, &role.Role{ID: id.NewRoleID(), Name: "admin"})
	if !tp.roleCreatedCalled {
		t.Fatal("OnRoleCreated was not called")
	}

	// Should dispatch AfterDecide.
	reg.EmitAfterDecide(ctx, nil, nil)
	if !tp.afterDecideCalled {
		t.Fatal("OnAfterDecide was not called")
	}

	// Should dispatch UserInvited.
	reg.EmitUserInvited(ctx, &assignment.Assignment{ID: id.NewAssignmentID()})
	if !tp.userInvitedCalled {
		t.Fatal("OnUserInvited was not called")
	}

	// Should not panic on hooks with no listeners.
	reg.EmitBeforeDecide(ctx, nil)
	reg.EmitRoleDeleted(ctx, id.NewRoleID())
	reg.EmitRequestFiled(ctx, nil)
	reg.EmitShutdown(ctx)
}
