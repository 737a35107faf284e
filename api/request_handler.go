package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/retreathq/authz"
	"github.com/retreathq/authz/id"
	"github.com/retreathq/authz/request"
)

func (a *API) registerRequestRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("role-requests"))

	if err := g.POST("/retreats/:retreatId/requests", a.fileRequest,
		forge.WithSummary("File role request"),
		forge.WithDescription("Opens a pending role request. A user holds at most one pending request per retreat."),
		forge.WithOperationID("fileRoleRequest"),
		forge.WithRequestSchema(FileRequestRequest{}),
		forge.WithCreatedResponse(&request.Request{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/requests/:requestId/approve", a.approveRequest,
		forge.WithSummary("Approve role request"),
		forge.WithDescription("Approves a pending request and activates the role assignment."),
		forge.WithOperationID("approveRoleRequest"),
		forge.WithRequestSchema(ApproveRequestRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Approval result", ApprovalResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/requests/:requestId/reject", a.rejectRequest,
		forge.WithSummary("Reject role request"),
		forge.WithDescription("Rejects a pending request. The user may file again afterwards."),
		forge.WithOperationID("rejectRoleRequest"),
		forge.WithRequestSchema(RejectRequestRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Rejected request", &request.Request{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/requests/:requestId", a.getRequest,
		forge.WithSummary("Get role request"),
		forge.WithDescription("Returns details of a specific role request."),
		forge.WithOperationID("getRoleRequest"),
		forge.WithResponseSchema(http.StatusOK, "Request details", &request.Request{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/requests", a.listRequests,
		forge.WithSummary("List role requests"),
		forge.WithDescription("Lists role requests with optional filters."),
		forge.WithOperationID("listRoleRequests"),
		forge.WithRequestSchema(ListRoleRequestsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Request list", ListResponse[*request.Request]{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) fileRequest(ctx forge.Context, req *FileRequestRequest) (*request.Request, error) {
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

	r, err := a.eng.FileRequest(ctx.Context(), authz.FileRequestParams{
		UserID:    req.UserID,
		RetreatID: retreatID,
		RoleID:    roleID,
		Message:   req.Message,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusCreated, r)
}

func (a *API) approveRequest(ctx forge.Context, req *ApproveRequestRequest) (*ApprovalResponse, error) {
	requestID, err := id.ParseRequestID(ctx.Param("requestId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid request ID: %v", err))
	}
	if req.ApprovedBy == "" {
		return nil, forge.BadRequest("approved_by is required")
	}

	r, asgn, err := a.eng.ApproveRequest(ctx.Context(), requestID, req.ApprovedBy)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ApprovalResponse{Request: r, Assignment: asgn}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) rejectRequest(ctx forge.Context, req *RejectRequestRequest) (*request.Request, error) {
	requestID, err := id.ParseRequestID(ctx.Param("requestId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid request ID: %v", err))
	}
	if req.RejectedBy == "" {
		return nil, forge.BadRequest("rejected_by is required")
	}

	r, err := a.eng.RejectRequest(ctx.Context(), requestID, req.RejectedBy, req.Reason)
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusOK, r)
}

func (a *API) getRequest(ctx forge.Context, _ *GetRoleRequestRequest) (*request.Request, error) {
	requestID, err := id.ParseRequestID(ctx.Param("requestId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid request ID: %v", err))
	}

	r, err := a.eng.Store().GetRequest(ctx.Context(), requestID)
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusOK, r)
}

func (a *API) listRequests(ctx forge.Context, req *ListRoleRequestsRequest) (*ListResponse[*request.Request], error) {
	filter := &request.ListFilter{
		UserID:    req.UserID,
		RetreatID: req.RetreatID,
		Status:    request.Status(req.Status),
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

	requests, err := a.eng.Store().ListRequests(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}
	total, err := a.eng.Store().CountRequests(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ListResponse[*request.Request]{Items: requests, Total: total, Limit: filter.Limit, Offset: filter.Offset}
	return resp, ctx.JSON(http.StatusOK, resp)
}
