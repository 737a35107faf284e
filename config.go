package authz

import "time"

// Config holds configuration for the authorization engine.
type Config struct {
	// CacheTTL is the time-to-live for cached decisions.
	// Zero means no caching.
	CacheTTL time.Duration `json:"cache_ttl,omitempty"`

	// DefaultInvitationTTL is applied to invitations created without an
	// explicit expiry. Zero means invitations do not expire.
	DefaultInvitationTTL time.Duration `json:"default_invitation_ttl,omitempty"`

	// RecordDecisions enables the decision audit log. Recording is
	// best-effort: a log write failure never fails the decision.
	RecordDecisions bool `json:"record_decisions,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL:             0,
		DefaultInvitationTTL: 0,
		RecordDecisions:      false,
	}
}
