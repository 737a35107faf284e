package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/retreathq/authz/id"
	"github.com/retreathq/authz/permission"
	"github.com/retreathq/authz/role"
	"github.com/retreathq/authz/store"
)

// defaultCatalog is the seed permission catalog for the retreat domain.
var defaultCatalog = []struct {
	resource, operation, description string
}{
	{"retreat", "create", "Create retreats"},
	{"retreat", "read", "View retreat details"},
	{"retreat", "update", "Edit retreat details"},
	{"retreat", "delete", "Delete retreats"},
	{"session", "create", "Schedule sessions"},
	{"session", "read", "View the session schedule"},
	{"session", "update", "Edit sessions"},
	{"session", "delete", "Cancel sessions"},
	{"participant", "read", "View participant details"},
	{"participant", "update", "Edit participant details"},
	{"participant", "remove", "Remove participants"},
	{"payment", "create", "Record payments"},
	{"payment", "read", "View payments"},
	{"payment", "update", "Adjust payments"},
	{"payment", "delete", "Void payments"},
	{"report", "view", "View reports"},
	{"report", "export", "Export reports"},
	{"user", "read", "View user accounts"},
	{"user", "manage", "Manage user accounts"},
	{"system", "admin", "Full system administration"},
}

// defaultRoles maps each seed role to the permission names it grants.
// An empty grant list means every catalog permission; admin gets every
// permission except system:admin.
var defaultRoles = []struct {
	name, slug, description string
	isSystem                bool
	grants                  []string
}{
	{"Super Admin", "superadmin", "Unrestricted access to everything", true, nil},
	{"Admin", "admin", "Full access except system administration", true, nil},
	{"Regular", "regular", "Baseline access for signed-in users", true,
		[]string{"retreat:read", "session:read"}},
	{"Coordinator", "coordinator", "Runs a retreat day to day", false,
		[]string{"retreat:read", "retreat:update", "session:create", "session:read",
			"session:update", "session:delete", "participant:read", "participant:update",
			"participant:remove", "payment:read", "report:view"}},
	{"Leader", "leader", "Leads sessions within a retreat", false,
		[]string{"retreat:read", "session:read", "session:update", "participant:read"}},
}

// SeedDefaults populates the store with the stock permission catalog and
// the default roles. Existing permissions and roles are left alone, so
// seeding an already initialized store is safe.
func SeedDefaults(ctx context.Context, s store.Store) error {
	now := time.Now()

	permsByName := make(map[string]id.PermissionID, len(defaultCatalog))
	for _, c := range defaultCatalog {
		name := permission.MakeName(c.resource, c.operation)
		existing, err := s.GetPermissionByName(ctx, name)
		if err == nil {
			permsByName[name] = existing.ID
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("authz: seed permission %q: %w", name, err)
		}
		p := &permission.Permission{
			ID:          id.NewPermissionID(),
			Name:        name,
			Resource:    c.resource,
			Operation:   c.operation,
			Description: c.description,
			IsSystem:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.CreatePermission(ctx, p); err != nil {
			return fmt.Errorf("authz: seed permission %q: %w", name, err)
		}
		permsByName[name] = p.ID
	}

	for _, d := range defaultRoles {
		var roleID id.RoleID
		existing, err := s.GetRoleBySlug(ctx, d.slug)
		switch {
		case err == nil:
			roleID = existing.ID
		case errors.Is(err, store.ErrNotFound):
			r := &role.Role{
				ID:          id.NewRoleID(),
				Name:        d.name,
				Slug:        d.slug,
				Description: d.description,
				IsSystem:    d.isSystem,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := s.CreateRole(ctx, r); err != nil {
				return fmt.Errorf("authz: seed role %q: %w", d.slug, err)
			}
			roleID = r.ID
		default:
			return fmt.Errorf("authz: seed role %q: %w", d.slug, err)
		}

		grants := d.grants
		if grants == nil {
			grants = make([]string, 0, len(permsByName))
			for name := range permsByName {
				if d.slug == "admin" && name == "system:admin" {
					continue
				}
				grants = append(grants, name)
			}
		}
		permIDs := make([]id.PermissionID, 0, len(grants))
		for _, name := range grants {
			pid, ok := permsByName[name]
			if !ok {
				return fmt.Errorf("authz: seed role %q: unknown permission %q", d.slug, name)
			}
			permIDs = append(permIDs, pid)
		}
		if err := s.SetRolePermissions(ctx, roleID, permIDs); err != nil {
			return fmt.Errorf("authz: seed role %q permissions: %w", d.slug, err)
		}
	}

	return nil
}
