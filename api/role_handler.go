package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/retreathq/authz"
	"github.com/retreathq/authz/id"
	"github.com/retreathq/authz/role"
)

func (a *API) registerRoleRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("roles"))

	if err := g.POST("/roles", a.createRole,
		forge.WithSummary("Create role"),
		forge.WithDescription("Creates a new role in the registry."),
		forge.WithOperationID("createRole"),
		forge.WithRequestSchema(CreateRoleRequest{}),
		forge.WithCreatedResponse(&role.Role{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/roles/:roleId", a.getRole,
		forge.WithSummary("Get role"),
		forge.WithDescription("Returns details of a specific role."),
		forge.WithOperationID("getRole"),
		forge.WithResponseSchema(http.StatusOK, "Role details", &role.Role{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/roles/:roleId", a.updateRole,
		forge.WithSummary("Update role"),
		forge.WithDescription("Updates an existing role. System roles are immutable."),
		forge.WithOperationID("updateRole"),
		forge.WithRequestSchema(UpdateRoleRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated role", &role.Role{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/roles/:roleId", a.deleteRole,
		forge.WithSummary("Delete role"),
		forge.WithDescription("Deletes a role along with its assignments and global bindings."),
		forge.WithOperationID("deleteRole"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/roles", a.listRoles,
		forge.WithSummary("List roles"),
		forge.WithDescription("Lists roles with optional filters."),
		forge.WithOperationID("listRoles"),
		forge.WithRequestSchema(ListRolesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Role list", ListResponse[*role.Role]{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/roles/:roleId/permissions", a.listRolePermissions,
		forge.WithSummary("List role permissions"),
		forge.WithDescription("Returns permission IDs attached to a role."),
		forge.WithOperationID("listRolePermissions"),
		forge.WithResponseSchema(http.StatusOK, "Permission IDs", []string{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/roles/:roleId/permissions", a.attachPermissionToRole,
		forge.WithSummary("Attach permission to role"),
		forge.WithDescription("Attaches a catalog permission to a role."),
		forge.WithOperationID("attachPermission"),
		forge.WithRequestSchema(AttachPermissionRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/roles/:roleId/permissions", a.setRolePermissions,
		forge.WithSummary("Replace role permissions"),
		forge.WithDescription("Replaces the full permission set of a role."),
		forge.WithOperationID("setRolePermissions"),
		forge.WithRequestSchema(SetRolePermissionsRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/roles/:roleId/permissions/:permissionId", a.detachPermissionFromRole,
		forge.WithSummary("Detach permission from role"),
		forge.WithDescription("Detaches a catalog permission from a role."),
		forge.WithOperationID("detachPermission"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/users/:userId/global-role", a.setGlobalRole,
		forge.WithSummary("Bind global role"),
		forge.WithDescription("Binds a role directly to a user, replacing any previous binding."),
		forge.WithOperationID("setGlobalRole"),
		forge.WithRequestSchema(SetGlobalRoleRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Global role binding", GlobalRoleResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/users/:userId/global-role", a.clearGlobalRole,
		forge.WithSummary("Clear global role"),
		forge.WithDescription("Removes the user's global role binding."),
		forge.WithOperationID("clearGlobalRole"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/users/:userId/global-role", a.getGlobalRole,
		forge.WithSummary("Get global role"),
		forge.WithDescription("Returns the user's global role binding, if any."),
		forge.WithOperationID("getGlobalRole"),
		forge.WithResponseSchema(http.StatusOK, "Global role binding", GlobalRoleResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) createRole(ctx forge.Context, req *CreateRoleRequest) (*role.Role, error) {
	if req.Name == "" {
		return nil, forge.BadRequest("name is required")
	}
	if req.Slug == "" {
		return nil, forge.BadRequest("slug is required")
	}

	r, err := a.eng.CreateRole(ctx.Context(), authz.RoleParams{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		IsSystem:    req.IsSystem,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusCreated, r)
}

func (a *API) getRole(ctx forge.Context, _ *GetRoleRequest) (*role.Role, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	r, err := a.eng.Store().GetRole(ctx.Context(), roleID)
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusOK, r)
}

func (a *API) updateRole(ctx forge.Context, req *UpdateRoleRequest) (*role.Role, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	r, err := a.eng.UpdateRole(ctx.Context(), roleID, authz.RoleUpdate{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusOK, r)
}

func (a *API) deleteRole(ctx forge.Context, _ *GetRoleRequest) (*struct{}, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	if err := a.eng.DeleteRole(ctx.Context(), roleID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listRoles(ctx forge.Context, req *ListRolesRequest) (*ListResponse[*role.Role], error) {
	filter := &role.ListFilter{
		Search: req.Search,
		Limit:  defaultLimit(req.Limit),
		Offset: req.Offset,
	}

	roles, err := a.eng.Store().ListRoles(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}
	total, err := a.eng.Store().CountRoles(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ListResponse[*role.Role]{Items: roles, Total: total, Limit: filter.Limit, Offset: filter.Offset}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) listRolePermissions(ctx forge.Context, _ *GetRoleRequest) ([]string, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	permIDs, err := a.eng.Store().ListRolePermissions(ctx.Context(), roleID)
	if err != nil {
		return nil, mapError(err)
	}

	out := make([]string, len(permIDs))
	for i, pid := range permIDs {
		out[i] = pid.String()
	}
	return out, ctx.JSON(http.StatusOK, out)
}

func (a *API) attachPermissionToRole(ctx forge.Context, req *AttachPermissionRequest) (*struct{}, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	permID, err := id.ParsePermissionID(req.PermissionID)
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid permission ID: %v", err))
	}

	if err := a.eng.AttachPermission(ctx.Context(), roleID, permID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) setRolePermissions(ctx forge.Context, req *SetRolePermissionsRequest) (*struct{}, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	permIDs := make([]id.PermissionID, len(req.PermissionIDs))
	for i, raw := range req.PermissionIDs {
		pid, err := id.ParsePermissionID(raw)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid permission ID %q: %v", raw, err))
		}
		permIDs[i] = pid
	}

	if err := a.eng.SetRolePermissions(ctx.Context(), roleID, permIDs); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) detachPermissionFromRole(ctx forge.Context, _ *struct{}) (*struct{}, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	permID, err := id.ParsePermissionID(ctx.Param("permissionId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid permission ID: %v", err))
	}

	if err := a.eng.DetachPermission(ctx.Context(), roleID, permID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) setGlobalRole(ctx forge.Context, req *SetGlobalRoleRequest) (*GlobalRoleResponse, error) {
	userID := ctx.Param("userId")
	if userID == "" {
		return nil, forge.BadRequest("userId is required")
	}

	roleID, err := id.ParseRoleID(req.RoleID)
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	if err := a.eng.SetGlobalRole(ctx.Context(), userID, roleID); err != nil {
		return nil, mapError(err)
	}

	resp := &GlobalRoleResponse{UserID: userID, RoleID: roleID.String()}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) clearGlobalRole(ctx forge.Context, _ *GetGlobalRoleRequest) (*struct{}, error) {
	userID := ctx.Param("userId")
	if userID == "" {
		return nil, forge.BadRequest("userId is required")
	}

	if err := a.eng.ClearGlobalRole(ctx.Context(), userID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) getGlobalRole(ctx forge.Context, _ *GetGlobalRoleRequest) (*GlobalRoleResponse, error) {
	userID := ctx.Param("userId")
	if userID == "" {
		return nil, forge.BadRequest("userId is required")
	}

	roleID, err := a.eng.GlobalRole(ctx.Context(), userID)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &GlobalRoleResponse{UserID: userID}
	if !roleID.IsNil() {
		resp.RoleID = roleID.String()
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}
