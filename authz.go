// Package authz provides retreat-scoped role and permission management.
//
// Access is granted two ways: a global role bound directly to a user
// (applies everywhere), and retreat role assignments that grant a role
// within a single retreat. Assignments carry optional per-user permission
// overrides; a denied override inside a retreat beats any role grant,
// including the global one.
//
//	eng, err := authz.NewEngine(
//	    authz.WithStore(memStore),
//	)
//	verdict, err := eng.Decide(ctx, authz.Query{
//	    UserID:     "user_123",
//	    Permission: "participant:update",
//	    RetreatID:  "retreat_456",
//	})
package authz

// Query is the input to an authorization decision. RetreatID is empty for
// global checks.
type Query struct {
	UserID     string `json:"user_id"`
	Permission string `json:"permission"`
	RetreatID  string `json:"retreat_id,omitempty"`
}

// Verdict is the outcome of an authorization decision.
type Verdict struct {
	Allowed    bool     `json:"allowed"`
	Decision   Decision `json:"decision"`
	Reason     Reason   `json:"reason,omitempty"`
	Detail     string   `json:"detail,omitempty"`
	EvalTimeNs int64    `json:"eval_time_ns"`
}

// Decision is the authorization outcome.
type Decision string

const (
	// DecisionAllow means the permission is granted.
	DecisionAllow Decision = "allow"

	// DecisionDenyOverride means a denied override in the retreat blocked
	// the permission. This wins over every grant, global roles included.
	DecisionDenyOverride Decision = "deny_override"

	// DecisionDenyNoGrant means no role or override grants the permission.
	DecisionDenyNoGrant Decision = "deny_no_grant"
)

// Reason identifies which grant path produced the decision.
type Reason string

const (
	// ReasonGlobalRole means the user's global role grants the permission.
	ReasonGlobalRole Reason = "global-role"

	// ReasonRetreatRole means the user's assignment in the retreat grants
	// the permission, through its role or a granted override.
	ReasonRetreatRole Reason = "retreat-role"

	// ReasonOverrideDeny means a denied override blocked the permission.
	ReasonOverrideDeny Reason = "override-deny"

	// ReasonNoGrant means nothing grants the permission.
	ReasonNoGrant Reason = "no-grant"
)
