// Package role defines the Role entity and its store interface.
//
// A role names a set of catalog permissions. Global roles (superadmin,
// admin, regular) are bound to a user directly and apply across all
// retreats; retreat-scoped roles (coordinator, leader, ...) apply through
// a retreat role assignment.
package role

import (
	"time"

	"github.com/retreathq/authz/id"
)

// Role represents a named grant set drawn from the permission catalog.
type Role struct {
	ID          id.RoleID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Slug        string    `json:"slug" db:"slug"`
	Description string    `json:"description,omitempty" db:"description"`
	IsSystem    bool      `json:"is_system" db:"is_system"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ListFilter contains filters for listing roles.
type ListFilter struct {
	IsSystem *bool  `json:"is_system,omitempty"`
	Search   string `json:"search,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}
