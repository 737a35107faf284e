package role

import (
	"context"

	"github.com/retreathq/authz/id"
)

// Store defines persistence operations for roles, role-permission links,
// and the user→global-role binding.
type Store interface {
	// CreateRole persists a new role.
	CreateRole(ctx context.Context, r *Role) error

	// GetRole retrieves a role by ID.
	GetRole(ctx context.Context, roleID id.RoleID) (*Role, error)

	// GetRoleBySlug retrieves a role by slug.
	GetRoleBySlug(ctx context.Context, slug string) (*Role, error)

	// UpdateRole persists changes to a role.
	UpdateRole(ctx context.Context, r *Role) error

	// DeleteRole removes a role by ID.
	DeleteRole(ctx context.Context, roleID id.RoleID) error

	// ListRoles returns roles matching the filter.
	ListRoles(ctx context.Context, filter *ListFilter) ([]*Role, error)

	// CountRoles returns the number of roles matching the filter.
	CountRoles(ctx context.Context, filter *ListFilter) (int64, error)

	// ListRolePermissions returns permission IDs attached to a role.
	ListRolePermissions(ctx context.Context, roleID id.RoleID) ([]id.PermissionID, error)

	// AttachPermission links a catalog permission to a role.
	AttachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error

	// DetachPermission removes a catalog permission from a role.
	DetachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error

	// SetRolePermissions replaces all permissions for a role.
	SetRolePermissions(ctx context.Context, roleID id.RoleID, permIDs []id.PermissionID) error

	// GetGlobalRole returns the role bound directly to a user.
	// Returns id.Nil and no error when the user has no global role.
	GetGlobalRole(ctx context.Context, userID string) (id.RoleID, error)

	// SetGlobalRole binds a role directly to a user, replacing any
	// previous binding.
	SetGlobalRole(ctx context.Context, userID string, roleID id.RoleID) error

	// ClearGlobalRole removes the user's global role binding.
	ClearGlobalRole(ctx context.Context, userID string) error
}
