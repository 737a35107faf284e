// Package decisionlog defines the decision audit log entry: one record
// per authorization decision, kept for traceability and tuning.
package decisionlog

import (
	"time"

	"github.com/retreathq/authz/id"
)

// Entry is one recorded authorization decision.
type Entry struct {
	ID         id.DecisionLogID `json:"id" db:"id"`
	UserID     string           `json:"user_id" db:"user_id"`
	RetreatID  string           `json:"retreat_id,omitempty" db:"retreat_id"`
	Permission string           `json:"permission" db:"permission"`
	Allowed    bool             `json:"allowed" db:"allowed"`
	Decision   string           `json:"decision" db:"decision"`
	Reason     string           `json:"reason" db:"reason"`
	EvalTimeNs int64            `json:"eval_time_ns" db:"eval_time_ns"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
}

// QueryFilter contains filters for querying decision log entries.
type QueryFilter struct {
	UserID     string     `json:"user_id,omitempty"`
	RetreatID  string     `json:"retreat_id,omitempty"`
	Permission string     `json:"permission,omitempty"`
	Allowed    *bool      `json:"allowed,omitempty"`
	Since      *time.Time `json:"since,omitempty"`
	Until      *time.Time `json:"until,omitempty"`
	Limit      int        `json:"limit,omitempty"`
	Offset     int        `json:"offset,omitempty"`
}
