package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/retreathq/authz/assignment"
	"github.com/retreathq/authz/id"
	"github.com/retreathq/authz/store"
)

// InviteParams describes an invitation to a retreat role.
type InviteParams struct {
	UserID    string     `json:"user_id"`
	RetreatID string     `json:"retreat_id"`
	RoleID    id.RoleID  `json:"role_id"`
	InvitedBy string     `json:"invited_by,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// Replace allows overwriting an assignment that is still effectively
	// active. Without it, inviting over an active assignment fails.
	Replace bool `json:"replace,omitempty"`
}

// Invite creates a pending assignment for a user in a retreat. Re-inviting
// over a pending, expired, or revoked assignment overwrites it in place;
// inviting over an effectively active one fails unless Replace is set.
func (e *Engine) Invite(ctx context.Context, p InviteParams) (*assignment.Assignment, error) {
	now := e.now()
	reg := e.registrySnapshot()
	if reg == nil {
		return nil, errors.New("authz: engine not started")
	}
	if _, err := reg.PermissionsOf(p.RoleID); err != nil {
		return nil, err
	}

	unlock := e.locks.lock(memberKey(p.UserID, p.RetreatID))
	defer unlock()

	existing, err := e.store.GetAssignmentForUser(ctx, p.UserID, p.RetreatID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("authz: invite: %w", err)
	}
	if existing != nil && existing.EffectiveStatus(now) == assignment.StatusActive && !p.Replace {
		return nil, fmt.Errorf("user %q in retreat %q: %w", p.UserID, p.RetreatID, ErrAlreadyActive)
	}

	expiresAt := p.ExpiresAt
	if expiresAt == nil && e.config.DefaultInvitationTTL > 0 {
		t := now.Add(e.config.DefaultInvitationTTL)
		expiresAt = &t
	}

	a := &assignment.Assignment{
		ID:        id.NewAssignmentID(),
		UserID:    p.UserID,
		RetreatID: p.RetreatID,
		RoleID:    p.RoleID,
		Status:    assignment.StatusPending,
		InvitedBy: p.InvitedBy,
		InvitedAt: now,
		ExpiresAt: expiresAt,
		UpdatedAt: now,
	}
	if err := e.store.SaveAssignment(ctx, a); err != nil {
		return nil, fmt.Errorf("authz: invite: %w", err)
	}

	e.invalidateUser(ctx, p.UserID)
	if e.plugins != nil {
		e.plugins.EmitUserInvited(ctx, a)
	}
	return a, nil
}

// Accept activates a pending invitation. It fails when the assignment is
// not pending or the invitation window has closed. A deadline on the
// invitation stays on the assignment, time-boxing the active role.
func (e *Engine) Accept(ctx context.Context, userID, retreatID string) (*assignment.Assignment, error) {
	now := e.now()

	unlock := e.locks.lock(memberKey(userID, retreatID))
	defer unlock()

	a, err := e.store.GetAssignmentForUser(ctx, userID, retreatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("user %q in retreat %q: %w", userID, retreatID, ErrAssignmentNotFound)
		}
		return nil, fmt.Errorf("authz: accept: %w", err)
	}
	if a.InvitationExpired(now) {
		return nil, fmt.Errorf("user %q in retreat %q: %w", userID, retreatID, ErrInvitationExpired)
	}
	if a.Status != assignment.StatusPending {
		return nil, fmt.Errorf("assignment is %s: %w", a.Status, ErrNotPending)
	}

	a.Status = assignment.StatusActive
	a.UpdatedAt = now
	if err := e.store.UpdateAssignment(ctx, a); err != nil {
		return nil, fmt.Errorf("authz: accept: %w", err)
	}

	e.invalidateUser(ctx, userID)
	if e.plugins != nil {
		e.plugins.EmitInvitationAccepted(ctx, a)
	}
	return a, nil
}

// Revoke terminates an assignment. Revoking a missing or already revoked
// assignment is a no-op; in the first case the returned assignment is nil.
func (e *Engine) Revoke(ctx context.Context, userID, retreatID string) (*assignment.Assignment, error) {
	now := e.now()

	unlock := e.locks.lock(memberKey(userID, retreatID))
	defer unlock()

	a, err := e.store.GetAssignmentForUser(ctx, userID, retreatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("authz: revoke: %w", err)
	}
	if a.Status == assignment.StatusRevoked {
		return a, nil
	}

	a.Status = assignment.StatusRevoked
	a.UpdatedAt = now
	if err := e.store.UpdateAssignment(ctx, a); err != nil {
		return nil, fmt.Errorf("authz: revoke: %w", err)
	}

	e.invalidateUser(ctx, userID)
	if e.plugins != nil {
		e.plugins.EmitAssignmentRevoked(ctx, a)
	}
	return a, nil
}

// SetOverrides replaces an assignment's permission overrides. Every
// override must name a catalog permission.
func (e *Engine) SetOverrides(ctx context.Context, userID, retreatID string, overrides []assignment.Override) (*assignment.Assignment, error) {
	now := e.now()
	reg := e.registrySnapshot()
	if reg == nil {
		return nil, errors.New("authz: engine not started")
	}
	for _, o := range overrides {
		if !reg.KnowsPermission(o.Name()) {
			return nil, fmt.Errorf("override %q: %w", o.Name(), ErrPermissionNotFound)
		}
	}

	unlock := e.locks.lock(memberKey(userID, retreatID))
	defer unlock()

	a, err := e.store.GetAssignmentForUser(ctx, userID, retreatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("user %q in retreat %q: %w", userID, retreatID, ErrAssignmentNotFound)
		}
		return nil, fmt.Errorf("authz: set overrides: %w", err)
	}

	a.Overrides = overrides
	a.UpdatedAt = now
	if err := e.store.UpdateAssignment(ctx, a); err != nil {
		return nil, fmt.Errorf("authz: set overrides: %w", err)
	}

	e.invalidateUser(ctx, userID)
	if e.plugins != nil {
		e.plugins.EmitOverridesChanged(ctx, a)
	}
	return a, nil
}

// Assignment fetches the assignment for a (user, retreat) pair.
func (e *Engine) Assignment(ctx context.Context, userID, retreatID string) (*assignment.Assignment, error) {
	a, err := e.store.GetAssignmentForUser(ctx, userID, retreatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("user %q in retreat %q: %w", userID, retreatID, ErrAssignmentNotFound)
		}
		return nil, err
	}
	return a, nil
}
