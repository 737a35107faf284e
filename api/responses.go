package api

import (
	"github.com/retreathq/authz/assignment"
	"github.com/retreathq/authz/request"
)

// DecideResponse is the response for an authorization decision.
type DecideResponse struct {
	Allowed    bool   `json:"allowed" description:"Whether the query is allowed"`
	Decision   string `json:"decision" description:"Decision code"`
	Reason     string `json:"reason,omitempty" description:"Which grant path produced the decision"`
	Detail     string `json:"detail,omitempty" description:"Additional decision detail"`
	EvalTimeNs int64  `json:"eval_time_ns" description:"Evaluation time in nanoseconds"`
}

// BatchDecideResponse contains results for multiple decisions.
type BatchDecideResponse struct {
	Results []DecideResponse `json:"results" description:"Decision results in query order"`
}

// GlobalRoleResponse reports a user's global role binding.
type GlobalRoleResponse struct {
	UserID string `json:"user_id" description:"User identifier"`
	RoleID string `json:"role_id,omitempty" description:"Bound role ID (empty when unbound)"`
}

// ApprovalResponse carries the approved request and the assignment it
// activated.
type ApprovalResponse struct {
	Request    *request.Request       `json:"request" description:"Approved request"`
	Assignment *assignment.Assignment `json:"assignment" description:"Activated assignment"`
}

// PurgeResponse reports how many decision log entries were removed.
type PurgeResponse struct {
	Purged int64 `json:"purged" description:"Number of entries deleted"`
}

// ListResponse wraps a list of items with pagination metadata.
type ListResponse[T any] struct {
	Items  []T   `json:"items" description:"List of items"`
	Total  int64 `json:"total" description:"Total count"`
	Limit  int   `json:"limit" description:"Page size"`
	Offset int   `json:"offset" description:"Page offset"`
}
