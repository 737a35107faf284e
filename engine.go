package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/retreathq/authz/assignment"
	"github.com/retreathq/authz/decisionlog"
	"github.com/retreathq/authz/id"
	"github.com/retreathq/authz/plugin"
	"github.com/retreathq/authz/store"
)

// Engine is the central authorization engine. It evaluates decisions
// against the role registry and the assignment store, manages the retreat
// membership lifecycle, and fires plugin hooks.
type Engine struct {
	store   store.Store
	cache   Cache
	plugins *plugin.Registry
	logger  *slog.Logger
	config  Config
	now     func() time.Time

	regMu    sync.RWMutex
	registry *Registry

	locks *keyLock
}

// NewEngine creates a new engine with the given options.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		config: DefaultConfig(),
		now:    time.Now,
		locks:  newKeyLock(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, errors.New("authz: store is required")
	}
	return e, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry (may be nil).
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Start loads the role and permission registry. The engine cannot decide
// before Start succeeds.
func (e *Engine) Start(ctx context.Context) error {
	return e.ReloadRegistry(ctx)
}

// Stop performs graceful shutdown.
func (e *Engine) Stop(ctx context.Context) error {
	if e.plugins != nil {
		e.plugins.EmitShutdown(ctx)
	}
	return nil
}

// Decide evaluates a permission for a user. This is the hot path.
//
// Precedence: a denied override on an active assignment in the retreat
// wins over everything, including a global role grant. Otherwise the
// global role is consulted first, then the retreat assignment's role and
// granted overrides. Without a retreat ID only the global role applies.
func (e *Engine) Decide(ctx context.Context, q Query) (*Verdict, error) {
	wall := time.Now()
	now := e.now()

	reg := e.registrySnapshot()
	if reg == nil {
		return nil, errors.New("authz: engine not started")
	}
	if !reg.KnowsPermission(q.Permission) {
		return nil, fmt.Errorf("authz: decide %q: %w", q.Permission, ErrPermissionNotFound)
	}

	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, q); ok {
			cached.EvalTimeNs = time.Since(wall).Nanoseconds()
			return cached, nil
		}
	}

	if e.plugins != nil {
		e.plugins.EmitBeforeDecide(ctx, q)
	}

	// Global role grant, if any.
	globalAllowed := false
	globalRole, err := e.store.GetGlobalRole(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("authz: resolve global role: %w", err)
	}
	if !globalRole.IsNil() {
		perms, err := reg.PermissionsOf(globalRole)
		if err != nil {
			// Stale binding to a deleted role contributes nothing.
			e.logger.Warn("global role missing from registry",
				slog.String("user_id", q.UserID),
				slog.String("role_id", globalRole.String()))
		} else {
			_, globalAllowed = perms[q.Permission]
		}
	}

	// Retreat assignment grant, if a retreat is in scope.
	retreatAllowed := false
	if q.RetreatID != "" {
		a, err := e.store.GetAssignmentForUser(ctx, q.UserID, q.RetreatID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("authz: resolve assignment: %w", err)
		}
		if err == nil && a.EffectiveStatus(now) == assignment.StatusActive {
			granted, denied := assignment.ResolveOverrides(a, now)
			if _, deny := denied[q.Permission]; deny {
				v := &Verdict{
					Decision: DecisionDenyOverride,
					Reason:   ReasonOverrideDeny,
					Detail:   "override denies " + q.Permission + " in retreat " + q.RetreatID,
				}
				return e.finish(ctx, q, v, wall), nil
			}
			if perms, err := reg.PermissionsOf(a.RoleID); err == nil {
				_, retreatAllowed = perms[q.Permission]
			}
			if !retreatAllowed {
				_, retreatAllowed = granted[q.Permission]
			}
		}
	}

	var v *Verdict
	switch {
	case globalAllowed:
		v = &Verdict{
			Allowed:  true,
			Decision: DecisionAllow,
			Reason:   ReasonGlobalRole,
			Detail:   "global role grants " + q.Permission,
		}
	case retreatAllowed:
		v = &Verdict{
			Allowed:  true,
			Decision: DecisionAllow,
			Reason:   ReasonRetreatRole,
			Detail:   "retreat assignment grants " + q.Permission,
		}
	default:
		v = &Verdict{
			Decision: DecisionDenyNoGrant,
			Reason:   ReasonNoGrant,
			Detail:   "no role or override grants " + q.Permission,
		}
	}
	return e.finish(ctx, q, v, wall), nil
}

// finish stamps the evaluation time, caches the verdict, fires hooks, and
// records the decision.
func (e *Engine) finish(ctx context.Context, q Query, v *Verdict, wall time.Time) *Verdict {
	v.EvalTimeNs = time.Since(wall).Nanoseconds()
	if e.cache != nil {
		e.cache.Set(ctx, q, v)
	}
	if e.plugins != nil {
		e.plugins.EmitAfterDecide(ctx, q, v)
	}
	e.recordDecision(ctx, q, v)
	return v
}

// recordDecision appends a decision log entry when recording is enabled.
// Failures are logged and swallowed; a decision is never failed by its
// audit write.
func (e *Engine) recordDecision(ctx context.Context, q Query, v *Verdict) {
	if !e.config.RecordDecisions {
		return
	}
	entry := &decisionlog.Entry{
		ID:         id.NewDecisionLogID(),
		UserID:     q.UserID,
		RetreatID:  q.RetreatID,
		Permission: q.Permission,
		Allowed:    v.Allowed,
		Decision:   string(v.Decision),
		Reason:     string(v.Reason),
		EvalTimeNs: v.EvalTimeNs,
		CreatedAt:  e.now(),
	}
	if err := e.store.CreateEntry(ctx, entry); err != nil {
		e.logger.Warn("decision log write failed",
			slog.String("user_id", q.UserID),
			slog.String("permission", q.Permission),
			slog.String("error", err.Error()))
	}
}

// Enforce returns an error if the decision is denied.
func (e *Engine) Enforce(ctx context.Context, q Query) error {
	v, err := e.Decide(ctx, q)
	if err != nil {
		return fmt.Errorf("authz decide: %w", err)
	}
	if !v.Allowed {
		return fmt.Errorf("%w: %s (%s)", ErrAccessDenied, v.Decision, v.Reason)
	}
	return nil
}

// Can is a shorthand for a simple decision. An empty retreatID checks the
// global scope only.
func (e *Engine) Can(ctx context.Context, userID, permission, retreatID string) (bool, error) {
	v, err := e.Decide(ctx, Query{UserID: userID, Permission: permission, RetreatID: retreatID})
	if err != nil {
		return false, err
	}
	return v.Allowed, nil
}

// invalidateUser drops the user's cached verdicts after a grant change.
func (e *Engine) invalidateUser(ctx context.Context, userID string) {
	if e.cache != nil {
		e.cache.InvalidateUser(ctx, userID)
	}
}
