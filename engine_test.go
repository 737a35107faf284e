package authz

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/retreathq/authz/assignment"
	"github.com/retreathq/authz/id"
	"github.com/retreathq/authz/store/memory"
)

// fakeClock is a settable time source for expiry tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *memory.Store, *fakeClock) {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	if err := SeedDefaults(ctx, s); err != nil {
		t.Fatal(err)
	}
	clk := newFakeClock()
	all := append([]Option{WithStore(s), WithClock(clk.Now)}, opts...)
	eng, err := NewEngine(all...)
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.Start(ctx); err != nil {
		t.Fatal(err)
	}
	return eng, s, clk
}

// roleID resolves a seeded role slug through the registry.
func roleID(t *testing.T, eng *Engine, slug string) id.RoleID {
	t.Helper()
	rid, err := eng.registrySnapshot().RoleBySlug(slug)
	if err != nil {
		t.Fatal(err)
	}
	return rid
}

// activate invites and accepts in one step.
func activate(t *testing.T, eng *Engine, userID, retreatID string, rid id.RoleID) *assignment.Assignment {
	t.Helper()
	ctx := context.Background()
	if _, err := eng.Invite(ctx, InviteParams{UserID: userID, RetreatID: retreatID, RoleID: rid}); err != nil {
		t.Fatal(err)
	}
	a, err := eng.Accept(ctx, userID, retreatID)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestNewEngine_RequiresStore(t *testing.T) {
	if _, err := NewEngine(); err == nil {
		t.Fatal("expected error when store is nil")
	}
}

func TestDecide_GlobalRole(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	if err := eng.SetGlobalRole(ctx, "u1", roleID(t, eng, "regular")); err != nil {
		t.Fatal(err)
	}

	v, err := eng.Decide(ctx, Query{UserID: "u1", Permission: "retreat:read"})
	if err != nil {
		t.Fatal(err)
	}
	if !v.Allowed || v.Reason != ReasonGlobalRole {
		t.Fatalf("expected global-role allow, got %s: %s", v.Decision, v.Reason)
	}

	// The global role applies inside any retreat too.
	v, err = eng.Decide(ctx, Query{UserID: "u1", Permission: "retreat:read", RetreatID: "r1"})
	if err != nil {
		t.Fatal(err)
	}
	if !v.Allowed || v.Reason != ReasonGlobalRole {
		t.Fatalf("expected global-role allow in retreat, got %s: %s", v.Decision, v.Reason)
	}

	// Regular does not carry payment:delete.
	v, err = eng.Decide(ctx, Query{UserID: "u1", Permission: "payment:delete"})
	if err != nil {
		t.Fatal(err)
	}
	if v.Allowed || v.Decision != DecisionDenyNoGrant {
		t.Fatalf("expected deny_no_grant, got %s", v.Decision)
	}
}

func TestDecide_NoGrants(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	v, err := eng.Decide(ctx, Query{UserID: "nobody", Permission: "retreat:read", RetreatID: "r1"})
	if err != nil {
		t.Fatal(err)
	}
	if v.Allowed || v.Decision != DecisionDenyNoGrant || v.Reason != ReasonNoGrant {
		t.Fatalf("expected no-grant deny, got %+v", v)
	}
}

func TestDecide_RetreatRoleIsScoped(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	activate(t, eng, "u1", "r1", roleID(t, eng, "coordinator"))

	v, err := eng.Decide(ctx, Query{UserID: "u1", Permission: "participant:update", RetreatID: "r1"})
	if err != nil {
		t.Fatal(err)
	}
	if !v.Allowed || v.Reason != ReasonRetreatRole {
		t.Fatalf("expected retreat-role allow, got %s: %s", v.Decision, v.Reason)
	}

	// Same permission in another retreat is denied.
	v, err = eng.Decide(ctx, Query{UserID: "u1", Permission: "participant:update", RetreatID: "r2"})
	if err != nil {
		t.Fatal(err)
	}
	if v.Allowed {
		t.Fatal("coordinator role must not leak into other retreats")
	}

	// And so is the global scope.
	v, err = eng.Decide(ctx, Query{UserID: "u1", Permission: "participant:update"})
	if err != nil {
		t.Fatal(err)
	}
	if v.Allowed {
		t.Fatal("coordinator role must not grant globally")
	}
}

func TestDecide_OverrideDenyBeatsGlobalRole(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	if err := eng.SetGlobalRole(ctx, "u1", roleID(t, eng, "admin")); err != nil {
		t.Fatal(err)
	}
	activate(t, eng, "u1", "r1", roleID(t, eng, "leader"))
	if _, err := eng.SetOverrides(ctx, "u1", "r1", []assignment.Override{
		{Resource: "payment", Operation: "delete", Granted: false, Reason: "handled by finance"},
	}); err != nil {
		t.Fatal(err)
	}

	// Denied inside r1 despite the global admin role.
	v, err := eng.Decide(ctx, Query{UserID: "u1", Permission: "payment:delete", RetreatID: "r1"})
	if err != nil {
		t.Fatal(err)
	}
	if v.Allowed || v.Decision != DecisionDenyOverride || v.Reason != ReasonOverrideDeny {
		t.Fatalf("expected override deny, got %+v", v)
	}

	// Still allowed globally and in other retreats.
	v, _ = eng.Decide(ctx, Query{UserID: "u1", Permission: "payment:delete"})
	if !v.Allowed {
		t.Fatal("override must not affect the global scope")
	}
	v, _ = eng.Decide(ctx, Query{UserID: "u1", Permission: "payment:delete", RetreatID: "r2"})
	if !v.Allowed || v.Reason != ReasonGlobalRole {
		t.Fatalf("expected global-role allow in r2, got %+v", v)
	}
}

func TestDecide_GrantedOverride(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	// Leader does not carry payment:create; an override adds it in r1.
	activate(t, eng, "u1", "r1", roleID(t, eng, "leader"))
	if _, err := eng.SetOverrides(ctx, "u1", "r1", []assignment.Override{
		{Resource: "payment", Operation: "create", Granted: true},
	}); err != nil {
		t.Fatal(err)
	}

	v, err := eng.Decide(ctx, Query{UserID: "u1", Permission: "payment:create", RetreatID: "r1"})
	if err != nil {
		t.Fatal(err)
	}
	if !v.Allowed || v.Reason != ReasonRetreatRole {
		t.Fatalf("expected retreat-role allow via override, got %+v", v)
	}

	v, _ = eng.Decide(ctx, Query{UserID: "u1", Permission: "payment:create", RetreatID: "r2"})
	if v.Allowed {
		t.Fatal("granted override must not leak into other retreats")
	}
}

func TestDecide_ExpiredOverrideIsInert(t *testing.T) {
	ctx := context.Background()
	eng, _, clk := newTestEngine(t)

	if err := eng.SetGlobalRole(ctx, "u1", roleID(t, eng, "admin")); err != nil {
		t.Fatal(err)
	}
	activate(t, eng, "u1", "r1", roleID(t, eng, "leader"))
	deadline := clk.Now().Add(time.Hour)
	if _, err := eng.SetOverrides(ctx, "u1", "r1", []assignment.Override{
		{Resource: "payment", Operation: "delete", Granted: false, ExpiresAt: &deadline},
	}); err != nil {
		t.Fatal(err)
	}

	v, _ := eng.Decide(ctx, Query{UserID: "u1", Permission: "payment:delete", RetreatID: "r1"})
	if v.Allowed {
		t.Fatal("override should deny before its expiry")
	}

	clk.Advance(2 * time.Hour)
	v, _ = eng.Decide(ctx, Query{UserID: "u1", Permission: "payment:delete", RetreatID: "r1"})
	if !v.Allowed || v.Reason != ReasonGlobalRole {
		t.Fatalf("expected expired override to stop denying, got %+v", v)
	}
}

func TestDecide_GlobalReasonWinsWhenBothGrant(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	if err := eng.SetGlobalRole(ctx, "u1", roleID(t, eng, "admin")); err != nil {
		t.Fatal(err)
	}
	activate(t, eng, "u1", "r1", roleID(t, eng, "coordinator"))

	v, err := eng.Decide(ctx, Query{UserID: "u1", Permission: "retreat:read", RetreatID: "r1"})
	if err != nil {
		t.Fatal(err)
	}
	if !v.Allowed || v.Reason != ReasonGlobalRole {
		t.Fatalf("expected global-role reason when both scopes grant, got %+v", v)
	}
}

func TestDecide_LazyAssignmentExpiry(t *testing.T) {
	ctx := context.Background()
	eng, s, clk := newTestEngine(t)

	deadline := clk.Now().Add(time.Hour)
	if _, err := eng.Invite(ctx, InviteParams{
		UserID: "u1", RetreatID: "r1", RoleID: roleID(t, eng, "coordinator"), ExpiresAt: &deadline,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Accept(ctx, "u1", "r1"); err != nil {
		t.Fatal(err)
	}

	v, _ := eng.Decide(ctx, Query{UserID: "u1", Permission: "participant:update", RetreatID: "r1"})
	if !v.Allowed {
		t.Fatal("expected allow before expiry")
	}

	clk.Advance(2 * time.Hour)
	v, _ = eng.Decide(ctx, Query{UserID: "u1", Permission: "participant:update", RetreatID: "r1"})
	if v.Allowed {
		t.Fatal("expected deny after assignment expiry")
	}

	// The stored row was never rewritten; expiry is derived on read.
	a, err := s.GetAssignmentForUser(ctx, "u1", "r1")
	if err != nil {
		t.Fatal(err)
	}
	if a.Status != assignment.StatusActive {
		t.Fatalf("stored status should stay active, got %s", a.Status)
	}
	if a.EffectiveStatus(clk.Now()) != assignment.StatusExpired {
		t.Fatal("effective status should read expired")
	}
}

func TestDecide_UnknownPermission(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	if _, err := eng.Decide(ctx, Query{UserID: "u1", Permission: "spaceship:launch"}); !errors.Is(err, ErrPermissionNotFound) {
		t.Fatalf("expected permission not found, got %v", err)
	}
}

// stubCache records get/set/invalidate traffic.
type stubCache struct {
	mu          sync.Mutex
	entries     map[string]*Verdict
	invalidated []string
}

func newStubCache() *stubCache {
	return &stubCache{entries: make(map[string]*Verdict)}
}

func (c *stubCache) key(q Query) string { return q.UserID + "|" + q.Permission + "|" + q.RetreatID }

func (c *stubCache) Get(_ context.Context, q Query) (*Verdict, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[c.key(q)]
	return v, ok
}

func (c *stubCache) Set(_ context.Context, q Query, v *Verdict) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.key(q)] = v
}

func (c *stubCache) InvalidateUser(_ context.Context, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, userID)
	for k := range c.entries {
		if len(k) > len(userID) && k[:len(userID)+1] == userID+"|" {
			delete(c.entries, k)
		}
	}
}

func TestDecide_CacheInvalidationOnMutation(t *testing.T) {
	ctx := context.Background()
	c := newStubCache()
	eng, _, _ := newTestEngine(t, WithCache(c))

	activate(t, eng, "u1", "r1", roleID(t, eng, "coordinator"))

	q := Query{UserID: "u1", Permission: "participant:update", RetreatID: "r1"}
	v, err := eng.Decide(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Allowed {
		t.Fatal("expected allow")
	}
	if _, ok := c.Get(ctx, q); !ok {
		t.Fatal("verdict should be cached")
	}

	// Revoking drops the cached verdicts and flips the decision.
	if _, err := eng.Revoke(ctx, "u1", "r1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(ctx, q); ok {
		t.Fatal("cache should be invalidated on revoke")
	}
	v, _ = eng.Decide(ctx, q)
	if v.Allowed {
		t.Fatal("expected deny after revoke")
	}
}

func TestDecide_RecordsDecisions(t *testing.T) {
	ctx := context.Background()
	eng, s, _ := newTestEngine(t, WithConfig(Config{RecordDecisions: true}))

	activate(t, eng, "u1", "r1", roleID(t, eng, "coordinator"))
	if _, err := eng.Decide(ctx, Query{UserID: "u1", Permission: "participant:update", RetreatID: "r1"}); err != nil {
		t.Fatal(err)
	}

	entries, err := s.ListEntries(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 decision log entry, got %d", len(entries))
	}
	e := entries[0]
	if e.UserID != "u1" || e.Permission != "participant:update" || !e.Allowed {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestEnforce(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	if err := eng.SetGlobalRole(ctx, "u1", roleID(t, eng, "regular")); err != nil {
		t.Fatal(err)
	}

	if err := eng.Enforce(ctx, Query{UserID: "u1", Permission: "retreat:read"}); err != nil {
		t.Fatal(err)
	}
	if err := eng.Enforce(ctx, Query{UserID: "u1", Permission: "payment:delete"}); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
}

func TestCan(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	activate(t, eng, "u1", "r1", roleID(t, eng, "leader"))

	ok, err := eng.Can(ctx, "u1", "session:update", "r1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected leader to update sessions in r1")
	}
	ok, _ = eng.Can(ctx, "u1", "session:update", "")
	if ok {
		t.Fatal("leader role is retreat-scoped")
	}
}
