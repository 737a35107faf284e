package authz

import (
	"context"
	"fmt"

	"github.com/retreathq/authz/id"
)

// Registry is an immutable snapshot of the role and permission catalog.
// It is built at engine start and rebuilt via Engine.ReloadRegistry after
// admin mutations; the hot path reads it without touching the store.
type Registry struct {
	// catalog holds every permission name the system understands.
	catalog map[string]struct{}

	// rolePerms maps a role ID to the set of permission names it grants.
	rolePerms map[string]map[string]struct{}

	// slugs maps a role slug to its ID.
	slugs map[string]id.RoleID
}

// KnowsPermission reports whether the permission name is in the catalog.
func (r *Registry) KnowsPermission(name string) bool {
	_, ok := r.catalog[name]
	return ok
}

// PermissionsOf returns the set of permission names granted by a role.
// The returned map is shared; callers must not mutate it.
func (r *Registry) PermissionsOf(roleID id.RoleID) (map[string]struct{}, error) {
	perms, ok := r.rolePerms[roleID.String()]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", roleID, ErrRoleNotFound)
	}
	return perms, nil
}

// RoleBySlug resolves a role slug to its ID.
func (r *Registry) RoleBySlug(slug string) (id.RoleID, error) {
	rid, ok := r.slugs[slug]
	if !ok {
		return id.Nil, fmt.Errorf("role slug %q: %w", slug, ErrRoleNotFound)
	}
	return rid, nil
}

// loadRegistry builds a registry snapshot from the store.
func (e *Engine) loadRegistry(ctx context.Context) (*Registry, error) {
	reg := &Registry{
		catalog:   make(map[string]struct{}),
		rolePerms: make(map[string]map[string]struct{}),
		slugs:     make(map[string]id.RoleID),
	}

	perms, err := e.store.ListPermissions(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("authz: load permission catalog: %w", err)
	}
	permNames := make(map[string]string, len(perms)) // permID -> name
	for _, p := range perms {
		reg.catalog[p.Name] = struct{}{}
		permNames[p.ID.String()] = p.Name
	}

	roles, err := e.store.ListRoles(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("authz: load roles: %w", err)
	}
	for _, rl := range roles {
		permIDs, err := e.store.ListRolePermissions(ctx, rl.ID)
		if err != nil {
			return nil, fmt.Errorf("authz: load permissions for role %s: %w", rl.ID, err)
		}
		grants := make(map[string]struct{}, len(permIDs))
		for _, pid := range permIDs {
			name, ok := permNames[pid.String()]
			if !ok {
				// Role references a permission no longer in the catalog.
				return nil, fmt.Errorf("authz: role %s references unknown permission %s: %w", rl.Slug, pid, ErrPermissionNotFound)
			}
			grants[name] = struct{}{}
		}
		reg.rolePerms[rl.ID.String()] = grants
		reg.slugs[rl.Slug] = rl.ID
	}

	return reg, nil
}

// registry returns the current snapshot.
func (e *Engine) registrySnapshot() *Registry {
	e.regMu.RLock()
	defer e.regMu.RUnlock()
	return e.registry
}

// ReloadRegistry rebuilds the role and permission snapshot from the store.
// Admin mutations that change roles or the catalog call this before they
// return.
func (e *Engine) ReloadRegistry(ctx context.Context) error {
	reg, err := e.loadRegistry(ctx)
	if err != nil {
		return err
	}
	e.regMu.Lock()
	e.registry = reg
	e.regMu.Unlock()
	return nil
}
