package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/retreathq/authz/id"
	"github.com/retreathq/authz/permission"
	"github.com/retreathq/authz/role"
	"github.com/retreathq/authz/store"
)

// Admin operations go through the engine rather than the store so the
// registry snapshot is rebuilt before they return and callers never
// decide against stale grants.

// RoleParams describes a new role.
type RoleParams struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	IsSystem    bool   `json:"is_system,omitempty"`
}

// RoleUpdate carries partial changes to a role. Nil fields are untouched.
type RoleUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// CreateRole adds a role to the registry.
func (e *Engine) CreateRole(ctx context.Context, p RoleParams) (*role.Role, error) {
	now := e.now()
	r := &role.Role{
		ID:          id.NewRoleID(),
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		IsSystem:    p.IsSystem,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.CreateRole(ctx, r); err != nil {
		return nil, fmt.Errorf("authz: create role: %w", err)
	}
	if err := e.ReloadRegistry(ctx); err != nil {
		return nil, err
	}
	if e.plugins != nil {
		e.plugins.EmitRoleCreated(ctx, r)
	}
	return r, nil
}

// UpdateRole applies partial changes to a role. System roles are immutable.
func (e *Engine) UpdateRole(ctx context.Context, roleID id.RoleID, u RoleUpdate) (*role.Role, error) {
	r, err := e.store.GetRole(ctx, roleID)
	if err != nil {
		return nil, mapRoleErr(roleID, err)
	}
	if r.IsSystem {
		return nil, fmt.Errorf("role %q: %w", r.Slug, ErrSystemRoleImmutable)
	}
	if u.Name != nil {
		r.Name = *u.Name
	}
	if u.Description != nil {
		r.Description = *u.Description
	}
	r.UpdatedAt = e.now()
	if err := e.store.UpdateRole(ctx, r); err != nil {
		return nil, mapRoleErr(roleID, err)
	}
	if err := e.ReloadRegistry(ctx); err != nil {
		return nil, err
	}
	if e.plugins != nil {
		e.plugins.EmitRoleUpdated(ctx, r)
	}
	return r, nil
}

// DeleteRole removes a role and its permission links. System roles are
// immutable.
func (e *Engine) DeleteRole(ctx context.Context, roleID id.RoleID) error {
	r, err := e.store.GetRole(ctx, roleID)
	if err != nil {
		return mapRoleErr(roleID, err)
	}
	if r.IsSystem {
		return fmt.Errorf("role %q: %w", r.Slug, ErrSystemRoleImmutable)
	}
	if err := e.store.DeleteRole(ctx, roleID); err != nil {
		return fmt.Errorf("authz: delete role: %w", err)
	}
	if err := e.ReloadRegistry(ctx); err != nil {
		return err
	}
	if e.plugins != nil {
		e.plugins.EmitRoleDeleted(ctx, roleID)
	}
	return nil
}

// AttachPermission links a catalog permission to a role.
func (e *Engine) AttachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error {
	if _, err := e.store.GetRole(ctx, roleID); err != nil {
		return mapRoleErr(roleID, err)
	}
	if _, err := e.store.GetPermission(ctx, permID); err != nil {
		return mapPermErr(permID, err)
	}
	if err := e.store.AttachPermission(ctx, roleID, permID); err != nil {
		return fmt.Errorf("authz: attach permission: %w", err)
	}
	if err := e.ReloadRegistry(ctx); err != nil {
		return err
	}
	if e.plugins != nil {
		e.plugins.EmitPermissionAttached(ctx, roleID, permID)
	}
	return nil
}

// DetachPermission removes a catalog permission from a role.
func (e *Engine) DetachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error {
	if err := e.store.DetachPermission(ctx, roleID, permID); err != nil {
		return fmt.Errorf("authz: detach permission: %w", err)
	}
	if err := e.ReloadRegistry(ctx); err != nil {
		return err
	}
	if e.plugins != nil {
		e.plugins.EmitPermissionDetached(ctx, roleID, permID)
	}
	return nil
}

// SetRolePermissions replaces a role's grant set.
func (e *Engine) SetRolePermissions(ctx context.Context, roleID id.RoleID, permIDs []id.PermissionID) error {
	if _, err := e.store.GetRole(ctx, roleID); err != nil {
		return mapRoleErr(roleID, err)
	}
	for _, pid := range permIDs {
		if _, err := e.store.GetPermission(ctx, pid); err != nil {
			return mapPermErr(pid, err)
		}
	}
	if err := e.store.SetRolePermissions(ctx, roleID, permIDs); err != nil {
		return fmt.Errorf("authz: set role permissions: %w", err)
	}
	return e.ReloadRegistry(ctx)
}

// PermissionParams describes a new catalog permission.
type PermissionParams struct {
	Resource    string `json:"resource"`
	Operation   string `json:"operation"`
	Description string `json:"description,omitempty"`
	IsSystem    bool   `json:"is_system,omitempty"`
}

// CreatePermission adds a permission to the catalog.
func (e *Engine) CreatePermission(ctx context.Context, p PermissionParams) (*permission.Permission, error) {
	now := e.now()
	perm := &permission.Permission{
		ID:          id.NewPermissionID(),
		Name:        permission.MakeName(p.Resource, p.Operation),
		Resource:    p.Resource,
		Operation:   p.Operation,
		Description: p.Description,
		IsSystem:    p.IsSystem,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.CreatePermission(ctx, perm); err != nil {
		return nil, fmt.Errorf("authz: create permission: %w", err)
	}
	if err := e.ReloadRegistry(ctx); err != nil {
		return nil, err
	}
	if e.plugins != nil {
		e.plugins.EmitPermissionCreated(ctx, perm)
	}
	return perm, nil
}

// DeletePermission removes a permission from the catalog and from every
// role that carries it. System permissions are immutable.
func (e *Engine) DeletePermission(ctx context.Context, permID id.PermissionID) error {
	p, err := e.store.GetPermission(ctx, permID)
	if err != nil {
		return mapPermErr(permID, err)
	}
	if p.IsSystem {
		return fmt.Errorf("permission %q: %w", p.Name, ErrSystemPermissionImmutable)
	}
	if err := e.store.DeletePermission(ctx, permID); err != nil {
		return fmt.Errorf("authz: delete permission: %w", err)
	}
	if err := e.ReloadRegistry(ctx); err != nil {
		return err
	}
	if e.plugins != nil {
		e.plugins.EmitPermissionDeleted(ctx, permID)
	}
	return nil
}

// SetGlobalRole binds a role to a user across all retreats.
func (e *Engine) SetGlobalRole(ctx context.Context, userID string, roleID id.RoleID) error {
	if _, err := e.store.GetRole(ctx, roleID); err != nil {
		return mapRoleErr(roleID, err)
	}
	if err := e.store.SetGlobalRole(ctx, userID, roleID); err != nil {
		return fmt.Errorf("authz: set global role: %w", err)
	}
	e.invalidateUser(ctx, userID)
	return nil
}

// ClearGlobalRole removes a user's global role binding.
func (e *Engine) ClearGlobalRole(ctx context.Context, userID string) error {
	if err := e.store.ClearGlobalRole(ctx, userID); err != nil {
		return fmt.Errorf("authz: clear global role: %w", err)
	}
	e.invalidateUser(ctx, userID)
	return nil
}

// GlobalRole returns the role bound to a user, or id.Nil when unbound.
func (e *Engine) GlobalRole(ctx context.Context, userID string) (id.RoleID, error) {
	return e.store.GetGlobalRole(ctx, userID)
}

func mapRoleErr(roleID id.RoleID, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("role %s: %w", roleID, ErrRoleNotFound)
	}
	return err
}

func mapPermErr(permID id.PermissionID, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("permission %s: %w", permID, ErrPermissionNotFound)
	}
	return err
}
