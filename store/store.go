// Package store defines the aggregate persistence interface. Each subsystem
// (role, permission, assignment, request, decisionlog) defines its own store
// interface. The composite Store composes them all.
// Backends: Postgres, SQLite, Mongo, and Memory.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/retreathq/authz/assignment"
	"github.com/retreathq/authz/decisionlog"
	"github.com/retreathq/authz/id"
	"github.com/retreathq/authz/permission"
	"github.com/retreathq/authz/request"
	"github.com/retreathq/authz/role"
)

// Sentinels shared by every backend. Backends wrap these with entity
// context; callers test with errors.Is.
var (
	// ErrNotFound is returned when an entity does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicatePending is returned by CreateRequest when the user
	// already has a pending request for the same retreat.
	ErrDuplicatePending = errors.New("store: pending request already exists")

	// ErrNotPending is returned by MarkRejected and ApproveRequest when
	// the request has already been resolved.
	ErrNotPending = errors.New("store: request is not pending")
)

// Store is the aggregate persistence interface.
// A single backend (postgres, sqlite, mongo, memory) implements all of it.
type Store interface {
	role.Store
	permission.Store
	assignment.Store
	request.Store
	decisionlog.Store

	// ApproveRequest atomically moves a pending request to approved and
	// writes the resulting active assignment for the requester. Either
	// both writes land or neither does. It fails when the request is no
	// longer pending.
	ApproveRequest(ctx context.Context, requestID id.RequestID, approvedBy string, at time.Time) (*request.Request, *assignment.Assignment, error)

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
