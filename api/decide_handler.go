package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/retreathq/authz"
)

func (a *API) registerDecisionRoutes(router forge.Router) error {
	g := router.Group("/v1/authz", forge.WithGroupTags("authorization"))

	if err := g.POST("/decide", a.decide,
		forge.WithSummary("Authorization decision"),
		forge.WithDescription("Evaluates whether the user holds the permission, optionally scoped to a retreat."),
		forge.WithOperationID("authzDecide"),
		forge.WithRequestSchema(DecideRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Decision result", DecideResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/enforce", a.enforce,
		forge.WithSummary("Enforce authorization"),
		forge.WithDescription("Returns 200 if allowed, 403 if denied."),
		forge.WithOperationID("authzEnforce"),
		forge.WithRequestSchema(DecideRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Allowed", DecideResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/batch-decide", a.batchDecide,
		forge.WithSummary("Batch authorization decision"),
		forge.WithDescription("Evaluates multiple authorization queries in one request."),
		forge.WithOperationID("authzBatchDecide"),
		forge.WithRequestSchema(BatchDecideRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Batch results", BatchDecideResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) decide(ctx forge.Context, req *DecideRequest) (*DecideResponse, error) {
	if req.UserID == "" || req.Permission == "" {
		return nil, forge.BadRequest("user_id and permission are required")
	}

	verdict, err := a.eng.Decide(ctx.Context(), toQuery(req))
	if err != nil {
		return nil, mapError(err)
	}

	resp := toDecideResponse(verdict)
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) enforce(ctx forge.Context, req *DecideRequest) (*DecideResponse, error) {
	if req.UserID == "" || req.Permission == "" {
		return nil, forge.BadRequest("user_id and permission are required")
	}

	verdict, err := a.eng.Decide(ctx.Context(), toQuery(req))
	if err != nil {
		return nil, mapError(err)
	}

	resp := toDecideResponse(verdict)
	if !verdict.Allowed {
		return resp, ctx.JSON(http.StatusForbidden, resp)
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) batchDecide(ctx forge.Context, req *BatchDecideRequest) (*BatchDecideResponse, error) {
	if len(req.Queries) == 0 {
		return nil, forge.BadRequest("queries cannot be empty")
	}

	results := make([]DecideResponse, len(req.Queries))
	for i, q := range req.Queries {
		verdict, err := a.eng.Decide(ctx.Context(), toQuery(&q))
		if err != nil {
			return nil, mapError(err)
		}
		results[i] = *toDecideResponse(verdict)
	}

	resp := &BatchDecideResponse{Results: results}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func toQuery(r *DecideRequest) authz.Query {
	return authz.Query{
		UserID:     r.UserID,
		Permission: r.Permission,
		RetreatID:  r.RetreatID,
	}
}

func toDecideResponse(v *authz.Verdict) *DecideResponse {
	return &DecideResponse{
		Allowed:    v.Allowed,
		Decision:   string(v.Decision),
		Reason:     string(v.Reason),
		Detail:     v.Detail,
		EvalTimeNs: v.EvalTimeNs,
	}
}
