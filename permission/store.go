package permission

import (
	"context"

	"github.com/retreathq/authz/id"
)

// Store defines persistence operations for catalog permissions.
type Store interface {
	// CreatePermission persists a new catalog permission.
	CreatePermission(ctx context.Context, p *Permission) error

	// GetPermission retrieves a permission by ID.
	GetPermission(ctx context.Context, permID id.PermissionID) (*Permission, error)

	// GetPermissionByName retrieves a permission by its canonical
	// "resource:operation" name.
	GetPermissionByName(ctx context.Context, name string) (*Permission, error)

	// DeletePermission removes a permission by ID.
	DeletePermission(ctx context.Context, permID id.PermissionID) error

	// ListPermissions returns permissions matching the filter.
	ListPermissions(ctx context.Context, filter *ListFilter) ([]*Permission, error)

	// CountPermissions returns the number of permissions matching the filter.
	CountPermissions(ctx context.Context, filter *ListFilter) (int64, error)
}
