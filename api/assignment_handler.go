package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/retreathq/authz"
	"github.com/retreathq/authz/assignment"
	"github.com/retreathq/authz/id"
)

func (a *API) registerAssignmentRoutes(router forge.Router) error {
	g := router.Group("/v1/retreats/:retreatId", forge.WithGroupTags("assignments"))

	if err := g.POST("/assignments", a.invite,
		forge.WithSummary("Invite user"),
		forge.WithDescription("Creates a pending role assignment for a user in the retreat."),
		forge.WithOperationID("inviteUser"),
		forge.WithRequestSchema(InviteRequest{}),
		forge.WithCreatedResponse(&assignment.Assignment{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/assignments/:userId/accept", a.acceptInvitation,
		forge.WithSummary("Accept invitation"),
		forge.WithDescription("Activates the user's pending assignment in the retreat."),
		forge.WithOperationID("acceptInvitation"),
		forge.WithResponseSchema(http.StatusOK, "Active assignment", &assignment.Assignment{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/assignments/:userId", a.revokeAssignment,
		forge.WithSummary("Revoke assignment"),
		forge.WithDescription("Revokes the user's assignment in the retreat. Revoking a missing assignment is a no-op."),
		forge.WithOperationID("revokeAssignment"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/assignments/:userId/overrides", a.setOverrides,
		forge.WithSummary("Replace permission overrides"),
		forge.WithDescription("Replaces the assignment's full override set. Denied overrides beat every role grant."),
		forge.WithOperationID("setOverrides"),
		forge.WithRequestSchema(SetOverridesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated assignment", &assignment.Assignment{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/assignments/:userId", a.getAssignment,
		forge.WithSummary("Get assignment"),
		forge.WithDescription("Returns the user's assignment in the retreat."),
		forge.WithOperationID("getAssignment"),
		forge.WithResponseSchema(http.StatusOK, "Assignment details", &assignment.Assignment{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/assignments", a.listAssignments,
		forge.WithSummary("List assignments"),
		forge.WithDescription("Lists role assignments in the retreat with optional filters."),
		forge.WithOperationID("listAssignments"),
		forge.WithRequestSchema(ListAssignmentsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Assignment list", ListResponse[*assignment.Assignment]{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) invite(ctx forge.Context, req *InviteRequest) (*assignment.Assignment, error) {
	retreatID := ctx.Param("retreatId")
	if retreatID == "" {
		return nil, forge.BadRequest("retreatId is required")
	}
	if req.UserID == "" {
		return nil, forge.BadRequest("user_id is required")
	}

	roleID, err := id.ParseRoleID(req.RoleID)
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	params := authz.InviteParams{
		UserID:    req.UserID,
		RetreatID: retreatID,
		RoleID:    roleID,
		InvitedBy: req.InvitedBy,
		Replace:   req.Replace,
	}
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid expires_at: %v", err))
		}
		params.ExpiresAt = &t
	}

	asgn, err := a.eng.Invite(ctx.Context(), params)
	if err != nil {
		return nil, mapError(err)
	}

	return asgn, ctx.JSON(http.StatusCreated, asgn)
}

func (a *API) acceptInvitation(ctx forge.Context, _ *GetAssignmentRequest) (*assignment.Assignment, error) {
	retreatID, userID := ctx.Param("retreatId"), ctx.Param("userId")
	if retreatID == "" || userID == "" {
		return nil, forge.BadRequest("retreatId and userId are required")
	}

	asgn, err := a.eng.Accept(ctx.Context(), userID, retreatID)
	if err != nil {
		return nil, mapError(err)
	}

	return asgn, ctx.JSON(http.StatusOK, asgn)
}

func (a *API) revokeAssignment(ctx forge.Context, _ *GetAssignmentRequest) (*struct{}, error) {
	retreatID, userID := ctx.Param("retreatId"), ctx.Param("userId")
	if retreatID == "" || userID == "" {
		return nil, forge.BadRequest("retreatId and userId are required")
	}

	if _, err := a.eng.Revoke(ctx.Context(), userID, retreatID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) setOverrides(ctx forge.Context, req *SetOverridesRequest) (*assignment.Assignment, error) {
	retreatID, userID := ctx.Param("retreatId"), ctx.Param("userId")
	if retreatID == "" || userID == "" {
		return nil, forge.BadRequest("retreatId and userId are required")
	}

	overrides := make([]assignment.Override, len(req.Overrides))
	for i, in := range req.Overrides {
		if in.Resource == "" || in.Operation == "" {
			return nil, forge.BadRequest("override resource and operation are required")
		}
		o := assignment.Override{
			Resource:  in.Resource,
			Operation: in.Operation,
			Granted:   in.Granted,
			Reason:    in.Reason,
		}
		if in.ExpiresAt != "" {
			t, err := time.Parse(time.RFC3339, in.ExpiresAt)
			if err != nil {
				return nil, forge.BadRequest(fmt.Sprintf("invalid override expires_at: %v", err))
			}
			o.ExpiresAt = &t
		}
		overrides[i] = o
	}

	asgn, err := a.eng.SetOverrides(ctx.Context(), userID, retreatID, overrides)
	if err != nil {
		return nil, mapError(err)
	}

	return asgn, ctx.JSON(http.StatusOK, asgn)
}

func (a *API) getAssignment(ctx forge.Context, _ *GetAssignmentRequest) (*assignment.Assignment, error) {
	retreatID, userID := ctx.Param("retreatId"), ctx.Param("userId")
	if retreatID == "" || userID == "" {
		return nil, forge.BadRequest("retreatId and userId are required")
	}

	asgn, err := a.eng.Assignment(ctx.Context(), userID, retreatID)
	if err != nil {
		return nil, mapError(err)
	}

	return asgn, ctx.JSON(http.StatusOK, asgn)
}

func (a *API) listAssignments(ctx forge.Context, req *ListAssignmentsRequest) (*ListResponse[*assignment.Assignment], error) {
	retreatID := ctx.Param("retreatId")
	if retreatID == "" {
		return nil, forge.BadRequest("retreatId is required")
	}

	filter := &assignment.ListFilter{
		UserID:    req.UserID,
		RetreatID: retreatID,
		Status:    assignment.Status(req.Status),
		Limit:     defaultLimit(req.Limit),
		Offset:    req.Offset,
	}
	if req.RoleID != "" {
		roleID, err := id.ParseRoleID(req.RoleID)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
		}
		filter.RoleID = &roleID
	}

	asgns, err := a.eng.Store().ListAssignments(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}
	total, err := a.eng.Store().CountAssignments(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ListResponse[*assignment.Assignment]{Items: asgns, Total: total, Limit: filter.Limit, Offset: filter.Offset}
	return resp, ctx.JSON(http.StatusOK, resp)
}
