package decisionlog

import (
	"context"
	"time"

	"github.com/retreathq/authz/id"
)

// Store defines the persistence interface for decision log entries.
type Store interface {
	// CreateEntry appends a decision log entry.
	CreateEntry(ctx context.Context, e *Entry) error

	// GetEntry retrieves an entry by ID.
	GetEntry(ctx context.Context, entryID id.DecisionLogID) (*Entry, error)

	// ListEntries returns entries matching the filter, newest first.
	ListEntries(ctx context.Context, filter *QueryFilter) ([]*Entry, error)

	// CountEntries returns the number of entries matching the filter.
	CountEntries(ctx context.Context, filter *QueryFilter) (int64, error)

	// PurgeEntries deletes entries created before the cutoff and returns
	// how many were removed.
	PurgeEntries(ctx context.Context, before time.Time) (int64, error)
}
