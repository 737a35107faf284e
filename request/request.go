// Package request defines the role request entity: a user asking for a
// role within a retreat, resolved by an approver.
package request

import (
	"time"

	"github.com/retreathq/authz/id"
)

// Status is the state of a role request. Requests are terminal once
// approved or rejected; only pending requests can transition.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Request records a user's ask for a role in a retreat, and its outcome.
// Invariant: at most one pending request exists per (UserID, RetreatID)
// pair, regardless of the requested role.
type Request struct {
	ID         id.RequestID `json:"id" db:"id"`
	UserID     string       `json:"user_id" db:"user_id"`
	RetreatID  string       `json:"retreat_id" db:"retreat_id"`
	RoleID     id.RoleID    `json:"role_id" db:"role_id"`
	Status     Status       `json:"status" db:"status"`
	Message    string       `json:"message,omitempty" db:"message"`
	ResolvedBy string       `json:"resolved_by,omitempty" db:"resolved_by"`
	Reason     string       `json:"reason,omitempty" db:"reason"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty" db:"resolved_at"`
}

// ListFilter contains filters for listing role requests.
type ListFilter struct {
	UserID    string     `json:"user_id,omitempty"`
	RetreatID string     `json:"retreat_id,omitempty"`
	RoleID    *id.RoleID `json:"role_id,omitempty"`
	Status    Status     `json:"status,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
}
