// Package assignment defines the retreat role assignment entity: a user's
// role within one specific retreat, with lifecycle status and optional
// per-assignment permission overrides.
package assignment

import (
	"time"

	"github.com/retreathq/authz/id"
	"github.com/retreathq/authz/permission"
)

// Status is the stored lifecycle state of an assignment.
type Status string

const (
	// StatusPending means the assignment was invited or requested but not
	// yet accepted.
	StatusPending Status = "pending"

	// StatusActive means the assignment grants its role's permissions.
	StatusActive Status = "active"

	// StatusExpired means the assignment's expiry has passed. Stored rows
	// are rarely rewritten to this value; consumers derive it lazily via
	// EffectiveStatus.
	StatusExpired Status = "expired"

	// StatusRevoked means an administrator terminated the assignment.
	// Revoked assignments never revert; they must be re-invited.
	StatusRevoked Status = "revoked"
)

// Assignment binds a role to a user within one retreat.
// Invariant: at most one assignment exists per (UserID, RetreatID) pair.
type Assignment struct {
	ID        id.AssignmentID `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	RetreatID string          `json:"retreat_id" db:"retreat_id"`
	RoleID    id.RoleID       `json:"role_id" db:"role_id"`
	Status    Status          `json:"status" db:"status"`
	InvitedBy string          `json:"invited_by,omitempty" db:"invited_by"`
	InvitedAt time.Time       `json:"invited_at" db:"invited_at"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty" db:"expires_at"`
	Overrides []Override      `json:"overrides,omitempty" db:"overrides"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// EffectiveStatus derives the status consumers must act on: a stored
// active assignment whose expiry has passed reads as expired, without the
// row ever being rewritten. Every reader goes through this function
// instead of the raw Status field.
func (a *Assignment) EffectiveStatus(now time.Time) Status {
	if a.Status == StatusActive && a.ExpiresAt != nil && now.After(*a.ExpiresAt) {
		return StatusExpired
	}
	return a.Status
}

// InvitationExpired reports whether a pending invitation can no longer
// be accepted.
func (a *Assignment) InvitationExpired(now time.Time) bool {
	return a.Status == StatusPending && a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}

// Override is a per-assignment exception to the role's grant set.
// Granted=true adds a permission the role would not otherwise carry;
// Granted=false revokes one it would. An override with a past ExpiresAt
// is inert.
type Override struct {
	Resource  string     `json:"resource"`
	Operation string     `json:"operation"`
	Granted   bool       `json:"granted"`
	Reason    string     `json:"reason,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Name returns the canonical "resource:operation" permission name the
// override targets.
func (o Override) Name() string {
	return permission.MakeName(o.Resource, o.Operation)
}

// ActiveAt reports whether the override is in force at the given time.
func (o Override) ActiveAt(now time.Time) bool {
	return o.ExpiresAt == nil || now.Before(*o.ExpiresAt)
}

// ResolveOverrides partitions the assignment's overrides that are still in
// force at now into granted and denied permission-name sets. Expired
// entries are treated as absent. Precedence between role-derived
// permissions and overrides is the engine's concern, not this function's.
func ResolveOverrides(a *Assignment, now time.Time) (granted, denied map[string]struct{}) {
	granted = make(map[string]struct{})
	denied = make(map[string]struct{})
	for _, o := range a.Overrides {
		if !o.ActiveAt(now) {
			continue
		}
		if o.Granted {
			granted[o.Name()] = struct{}{}
		} else {
			denied[o.Name()] = struct{}{}
		}
	}
	return granted, denied
}

// ListFilter contains filters for listing assignments.
type ListFilter struct {
	UserID    string     `json:"user_id,omitempty"`
	RetreatID string     `json:"retreat_id,omitempty"`
	RoleID    *id.RoleID `json:"role_id,omitempty"`
	Status    Status     `json:"status,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
}
