package cache

import (
	"context"
	"testing"
	"time"

	"github.com/retreathq/authz"
)

func TestMemoryCacheHitMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Minute))

	q := authz.Query{UserID: "u1", Permission: "retreat:read", RetreatID: "r1"}
	v := &authz.Verdict{Allowed: true, Decision: authz.DecisionAllow}

	// Miss
	if _, ok := c.Get(ctx, q); ok {
		t.Fatal("expected cache miss")
	}

	// Set + Hit
	c.Set(ctx, q, v)
	got, ok := c.Get(ctx, q)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !got.Allowed {
		t.Fatal("expected allowed")
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(1 * time.Millisecond))

	q := authz.Query{UserID: "u1", Permission: "retreat:read"}
	c.Set(ctx, q, &authz.Verdict{Allowed: true})
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get(ctx, q); ok {
		t.Fatal("expected cache miss after TTL expiry")
	}
}

func TestMemoryCacheInvalidateUser(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	q1 := authz.Query{UserID: "u1", Permission: "retreat:read", RetreatID: "r1"}
	q2 := authz.Query{UserID: "u1", Permission: "session:read"}
	q3 := authz.Query{UserID: "u2", Permission: "retreat:read", RetreatID: "r1"}

	c.Set(ctx, q1, &authz.Verdict{Allowed: true})
	c.Set(ctx, q2, &authz.Verdict{Allowed: false})
	c.Set(ctx, q3, &authz.Verdict{Allowed: true})

	c.InvalidateUser(ctx, "u1")

	if _, ok := c.Get(ctx, q1); ok {
		t.Fatal("u1 q1 should be invalidated")
	}
	if _, ok := c.Get(ctx, q2); ok {
		t.Fatal("u1 q2 should be invalidated")
	}
	if _, ok := c.Get(ctx, q3); !ok {
		t.Fatal("u2 should still be cached")
	}
}

func TestMemoryCacheMaxSize(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithMaxSize(2))

	for i := 0; i < 5; i++ {
		q := authz.Query{UserID: "u1", Permission: "retreat:read", RetreatID: string(rune('a' + i))}
		c.Set(ctx, q, &authz.Verdict{Allowed: true})
	}

	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()
	if size > 2 {
		t.Fatalf("expected max 2 entries, got %d", size)
	}
}
