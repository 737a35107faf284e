package authz

import "context"

// Cache provides caching for authorization decisions.
type Cache interface {
	// Get returns a cached verdict, if available.
	Get(ctx context.Context, q Query) (*Verdict, bool)

	// Set stores a verdict in the cache.
	Set(ctx context.Context, q Query, v *Verdict)

	// InvalidateUser removes all cached verdicts for a user, across all
	// retreats. Called after any mutation that changes the user's grants.
	InvalidateUser(ctx context.Context, userID string)
}
