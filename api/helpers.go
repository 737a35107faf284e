package api

import (
	"errors"

	"github.com/xraph/forge"

	"github.com/retreathq/authz"
)

// mapError maps domain errors to Forge HTTP errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return forge.NotFound(err.Error())
	}
	if errors.Is(err, authz.ErrSystemRoleImmutable) || errors.Is(err, authz.ErrSystemPermissionImmutable) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, authz.ErrAlreadyActive) || errors.Is(err, authz.ErrDuplicatePendingRequest) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, authz.ErrNotPending) || errors.Is(err, authz.ErrInvitationExpired) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, authz.ErrAccessDenied) {
		return forge.Forbidden(err.Error())
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, authz.ErrRoleNotFound) ||
		errors.Is(err, authz.ErrPermissionNotFound) ||
		errors.Is(err, authz.ErrAssignmentNotFound) ||
		errors.Is(err, authz.ErrRequestNotFound)
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
