// Package permission defines the catalog Permission entity and its store
// interface. The catalog is the fixed set of (resource, operation) pairs the
// system understands; it is seeded at deployment time and treated as
// immutable for the process lifetime.
package permission

import (
	"fmt"
	"strings"
	"time"

	"github.com/retreathq/authz/id"
)

// Permission represents a specific operation allowed on a resource type,
// e.g. resource "retreat", operation "read". Its canonical name is
// "resource:operation".
type Permission struct {
	ID          id.PermissionID `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Resource    string          `json:"resource" db:"resource"`
	Operation   string          `json:"operation" db:"operation"`
	Description string          `json:"description,omitempty" db:"description"`
	IsSystem    bool            `json:"is_system" db:"is_system"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// MakeName builds the canonical "resource:operation" permission name.
func MakeName(resource, operation string) string {
	return resource + ":" + operation
}

// SplitName splits a canonical permission name into its resource and
// operation components.
func SplitName(name string) (resource, operation string, err error) {
	resource, operation, ok := strings.Cut(name, ":")
	if !ok || resource == "" || operation == "" {
		return "", "", fmt.Errorf("permission: malformed name %q (want resource:operation)", name)
	}
	return resource, operation, nil
}

// ListFilter contains filters for listing permissions.
type ListFilter struct {
	Resource  string `json:"resource,omitempty"`
	Operation string `json:"operation,omitempty"`
	IsSystem  *bool  `json:"is_system,omitempty"`
	Search    string `json:"search,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}
