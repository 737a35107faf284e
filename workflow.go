package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/retreathq/authz/assignment"
	"github.com/retreathq/authz/id"
	"github.com/retreathq/authz/request"
	"github.com/retreathq/authz/store"
)

// FileRequestParams describes a user's ask for a role in a retreat.
type FileRequestParams struct {
	UserID    string    `json:"user_id"`
	RetreatID string    `json:"retreat_id"`
	RoleID    id.RoleID `json:"role_id"`
	Message   string    `json:"message,omitempty"`
}

// FileRequest opens a pending role request. A user can hold at most one
// pending request per retreat.
func (e *Engine) FileRequest(ctx context.Context, p FileRequestParams) (*request.Request, error) {
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

	r := &request.Request{
		ID:        id.NewRequestID(),
		UserID:    p.UserID,
		RetreatID: p.RetreatID,
		RoleID:    p.RoleID,
		Status:    request.StatusPending,
		Message:   p.Message,
		CreatedAt: now,
	}
	if err := e.store.CreateRequest(ctx, r); err != nil {
		if errors.Is(err, store.ErrDuplicatePending) {
			return nil, fmt.Errorf("user %q in retreat %q: %w", p.UserID, p.RetreatID, ErrDuplicatePendingRequest)
		}
		return nil, fmt.Errorf("authz: file request: %w", err)
	}

	if e.plugins != nil {
		e.plugins.EmitRequestFiled(ctx, r)
	}
	return r, nil
}

// ApproveRequest resolves a pending request and activates the requested
// role for its user in one atomic store operation. Approving a resolved
// request fails.
func (e *Engine) ApproveRequest(ctx context.Context, requestID id.RequestID, approvedBy string) (*request.Request, *assignment.Assignment, error) {
	now := e.now()

	r, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, fmt.Errorf("request %s: %w", requestID, ErrRequestNotFound)
		}
		return nil, nil, fmt.Errorf("authz: approve request: %w", err)
	}

	unlock := e.locks.lock(memberKey(r.UserID, r.RetreatID))
	defer unlock()

	approved, a, err := e.store.ApproveRequest(ctx, requestID, approvedBy, now)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, nil, fmt.Errorf("request %s: %w", requestID, ErrRequestNotFound)
		case errors.Is(err, store.ErrNotPending):
			return nil, nil, fmt.Errorf("request %s: %w", requestID, ErrNotPending)
		}
		return nil, nil, fmt.Errorf("authz: approve request: %w", err)
	}

	e.invalidateUser(ctx, approved.UserID)
	if e.plugins != nil {
		e.plugins.EmitRequestApproved(ctx, approved, a)
	}
	return approved, a, nil
}

// RejectRequest resolves a pending request negatively. The assignment
// table is untouched. Rejecting a resolved request fails.
func (e *Engine) RejectRequest(ctx context.Context, requestID id.RequestID, rejectedBy, reason string) (*request.Request, error) {
	now := e.now()

	rejected, err := e.store.MarkRejected(ctx, requestID, rejectedBy, reason, now)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("request %s: %w", requestID, ErrRequestNotFound)
		case errors.Is(err, store.ErrNotPending):
			return nil, fmt.Errorf("request %s: %w", requestID, ErrNotPending)
		}
		return nil, fmt.Errorf("authz: reject request: %w", err)
	}

	if e.plugins != nil {
		e.plugins.EmitRequestRejected(ctx, rejected)
	}
	return rejected, nil
}
