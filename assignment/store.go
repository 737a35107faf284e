package assignment

import (
	"context"

	"github.com/retreathq/authz/id"
)

// Store defines the persistence interface for retreat role assignments.
type Store interface {
	// SaveAssignment inserts the assignment, or replaces the existing row
	// for the same (UserID, RetreatID) pair while keeping its ID.
	SaveAssignment(ctx context.Context, a *Assignment) error

	// GetAssignment retrieves an assignment by ID.
	GetAssignment(ctx context.Context, assignmentID id.AssignmentID) (*Assignment, error)

	// GetAssignmentForUser retrieves the assignment for a (user, retreat)
	// pair, or an error wrapping the not-found sentinel when none exists.
	GetAssignmentForUser(ctx context.Context, userID, retreatID string) (*Assignment, error)

	// UpdateAssignment persists changes to an existing assignment.
	UpdateAssignment(ctx context.Context, a *Assignment) error

	// DeleteAssignment removes an assignment by ID.
	DeleteAssignment(ctx context.Context, assignmentID id.AssignmentID) error

	// DeleteAssignmentsForUser removes every assignment held by a user,
	// across all retreats. Used when a user account is purged.
	DeleteAssignmentsForUser(ctx context.Context, userID string) error

	// ListAssignments returns assignments matching the filter.
	ListAssignments(ctx context.Context, filter *ListFilter) ([]*Assignment, error)

	// CountAssignments returns the number of assignments matching the filter.
	CountAssignments(ctx context.Context, filter *ListFilter) (int64, error)
}
