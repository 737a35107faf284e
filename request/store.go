package request

import (
	"context"
	"time"

	"github.com/retreathq/authz/id"
)

// Store defines the persistence interface for role requests.
type Store interface {
	// CreateRequest inserts a new pending request. It fails with an error
	// wrapping the duplicate-pending sentinel when the user already has a
	// pending request for the same retreat.
	CreateRequest(ctx context.Context, r *Request) error

	// GetRequest retrieves a request by ID.
	GetRequest(ctx context.Context, requestID id.RequestID) (*Request, error)

	// MarkRejected atomically moves a pending request to rejected,
	// recording who resolved it and why. It fails when the request is no
	// longer pending.
	MarkRejected(ctx context.Context, requestID id.RequestID, resolvedBy, reason string, at time.Time) (*Request, error)

	// DeleteRequest removes a request by ID.
	DeleteRequest(ctx context.Context, requestID id.RequestID) error

	// ListRequests returns requests matching the filter.
	ListRequests(ctx context.Context, filter *ListFilter) ([]*Request, error)

	// CountRequests returns the number of requests matching the filter.
	CountRequests(ctx context.Context, filter *ListFilter) (int64, error)
}
