package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/xraph/forge"

	"github.com/retreathq/authz/decisionlog"
)

func (a *API) registerDecisionLogRoutes(router forge.Router) error {
	g := router.Group("/v1/decision-logs", forge.WithGroupTags("decision-logs"))

	if err := g.GET("", a.listDecisionLogs,
		forge.WithSummary("List decision logs"),
		forge.WithDescription("Queries recorded authorization decisions, newest first."),
		forge.WithOperationID("listDecisionLogs"),
		forge.WithRequestSchema(ListDecisionLogsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Decision log entries", ListResponse[*decisionlog.Entry]{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("", a.purgeDecisionLogs,
		forge.WithSummary("Purge decision logs"),
		forge.WithDescription("Deletes decision log entries created before the given timestamp."),
		forge.WithOperationID("purgeDecisionLogs"),
		forge.WithRequestSchema(PurgeDecisionLogsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Purge result", PurgeResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) listDecisionLogs(ctx forge.Context, req *ListDecisionLogsRequest) (*ListResponse[*decisionlog.Entry], error) {
	filter := &decisionlog.QueryFilter{
		UserID:     req.UserID,
		RetreatID:  req.RetreatID,
		Permission: req.Permission,
		Limit:      defaultLimit(req.Limit),
		Offset:     req.Offset,
	}

	if req.Allowed != "" {
		allowed, err := strconv.ParseBool(req.Allowed)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid allowed filter: %v", err))
		}
		filter.Allowed = &allowed
	}
	if req.Since != "" {
		t, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid since: %v", err))
		}
		filter.Since = &t
	}
	if req.Until != "" {
		t, err := time.Parse(time.RFC3339, req.Until)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid until: %v", err))
		}
		filter.Until = &t
	}

	entries, err := a.eng.Store().ListEntries(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}
	total, err := a.eng.Store().CountEntries(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ListResponse[*decisionlog.Entry]{Items: entries, Total: total, Limit: filter.Limit, Offset: filter.Offset}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) purgeDecisionLogs(ctx forge.Context, req *PurgeDecisionLogsRequest) (*PurgeResponse, error) {
	if req.Before == "" {
		return nil, forge.BadRequest("before is required")
	}
	before, err := time.Parse(time.RFC3339, req.Before)
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid before: %v", err))
	}

	purged, err := a.eng.Store().PurgeEntries(ctx.Context(), before)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &PurgeResponse{Purged: purged}
	return resp, ctx.JSON(http.StatusOK, resp)
}
