package authz

import "errors"

var (
	// ErrAccessDenied is returned when an enforcement check fails.
	ErrAccessDenied = errors.New("authz: access denied")

	// ErrRoleNotFound is returned when a role cannot be found.
	ErrRoleNotFound = errors.New("authz: role not found")

	// ErrPermissionNotFound is returned when a permission is not in the catalog.
	ErrPermissionNotFound = errors.New("authz: permission not found")

	// ErrAssignmentNotFound is returned when an assignment cannot be found.
	ErrAssignmentNotFound = errors.New("authz: assignment not found")

	// ErrRequestNotFound is returned when a role request cannot be found.
	ErrRequestNotFound = errors.New("authz: role request not found")

	// ErrSystemRoleImmutable is returned when trying to modify a system role.
	ErrSystemRoleImmutable = errors.New("authz: system role cannot be modified")

	// ErrSystemPermissionImmutable is returned when trying to modify a system permission.
	ErrSystemPermissionImmutable = errors.New("authz: system permission cannot be modified")

	// ErrAlreadyActive is returned when inviting a user who already holds
	// an active assignment in the retreat.
	ErrAlreadyActive = errors.New("authz: user already has an active assignment in retreat")

	// ErrNotPending is returned when accepting or resolving something that
	// has already left the pending state.
	ErrNotPending = errors.New("authz: not pending")

	// ErrInvitationExpired is returned when accepting an invitation whose
	// expiry has passed.
	ErrInvitationExpired = errors.New("authz: invitation expired")

	// ErrDuplicatePendingRequest is returned when a user files a second
	// role request for a retreat while one is still pending.
	ErrDuplicatePendingRequest = errors.New("authz: pending role request already exists for retreat")
)
