// Package plugin defines the plugin system for the authorization engine.
// Plugins are notified of lifecycle events (decision made, role created,
// assignment revoked, etc.) and can react — logging, metrics, tracing.
//
// Each lifecycle hook is a separate interface so plugins opt in only
// to the events they care about.
package plugin

import (
	"context"

	"github.com/retreathq/authz/assignment"
	"github.com/retreathq/authz/id"
	"github.com/retreathq/authz/permission"
	"github.com/retreathq/authz/request"
	"github.com/retreathq/authz/role"
)

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	// Name returns a unique human-readable name for the plugin.
	Name() string
}

// ──────────────────────────────────────────────────
// Decision lifecycle hooks
// ──────────────────────────────────────────────────

// BeforeDecide is called before an authorization decision is evaluated.
// The q parameter is authz.Query (passed as any to avoid import cycle).
type BeforeDecide interface {
	OnBeforeDecide(ctx context.Context, q any) error
}

// AfterDecide is called after an authorization decision completes.
// The q parameter is authz.Query; verdict is *authz.Verdict.
type AfterDecide interface {
	OnAfterDecide(ctx context.Context, q, verdict any) error
}

// ──────────────────────────────────────────────────
// Role lifecycle hooks
// ──────────────────────────────────────────────────

// RoleCreated is called after a role is created.
type RoleCreated interface {
	OnRoleCreated(ctx context.Context, r *role.Role) error
}

// RoleUpdated is called after a role is updated.
type RoleUpdated interface {
	OnRoleUpdated(ctx context.Context, r *role.Role) error
}

// RoleDeleted is called after a role is deleted.
type RoleDeleted interface {
	OnRoleDeleted(ctx context.Context, roleID id.RoleID) error
}

// ──────────────────────────────────────────────────
// Permission lifecycle hooks
// ──────────────────────────────────────────────────

// PermissionCreated is called after a permission is added to the catalog.
type PermissionCreated interface {
	OnPermissionCreated(ctx context.Context, p *permission.Permission) error
}

// PermissionDeleted is called after a permission is removed from the catalog.
type PermissionDeleted interface {
	OnPermissionDeleted(ctx context.Context, permID id.PermissionID) error
}

// PermissionAttached is called after a permission is attached to a role.
type PermissionAttached interface {
	OnPermissionAttached(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error
}

// PermissionDetached is called after a permission is detached from a role.
type PermissionDetached interface {
	OnPermissionDetached(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error
}

// ──────────────────────────────────────────────────
// Assignment lifecycle hooks
// ──────────────────────────────────────────────────

// UserInvited is called after a user is invited to a retreat role.
type UserInvited interface {
	OnUserInvited(ctx context.Context, a *assignment.Assignment) error
}

// InvitationAccepted is called after a user accepts an invitation.
type InvitationAccepted interface {
	OnInvitationAccepted(ctx context.Context, a *assignment.Assignment) error
}

// AssignmentRevoked is called after an assignment is revoked.
type AssignmentRevoked interface {
	OnAssignmentRevoked(ctx context.Context, a *assignment.Assignment) error
}

// OverridesChanged is called after an assignment's overrides are replaced.
type OverridesChanged interface {
	OnOverridesChanged(ctx context.Context, a *assignment.Assignment) error
}

// ──────────────────────────────────────────────────
// Role request lifecycle hooks
// ──────────────────────────────────────────────────

// RequestFiled is called after a user files a role request.
type RequestFiled interface {
	OnRequestFiled(ctx context.Context, r *request.Request) error
}

// RequestApproved is called after a role request is approved.
type RequestApproved interface {
	OnRequestApproved(ctx context.Context, r *request.Request, a *assignment.Assignment) error
}

// RequestRejected is called after a role request is rejected.
type RequestRejected interface {
	OnRequestRejected(ctx context.Context, r *request.Request) error
}

// ──────────────────────────────────────────────────
// Shutdown hook
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
