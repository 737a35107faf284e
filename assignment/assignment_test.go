package assignment

import (
	"testing"
	"time"

	"github.com/retreathq/authz/id"
)

func TestEffectiveStatus(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		status    Status
		expiresAt *time.Time
		want      Status
	}{
		{"active no expiry", StatusActive, nil, StatusActive},
		{"active future expiry", StatusActive, &future, StatusActive},
		{"active past expiry", StatusActive, &past, StatusExpired},
		{"pending past expiry stays pending", StatusPending, &past, StatusPending},
		{"revoked past expiry stays revoked", StatusRevoked, &past, StatusRevoked},
		{"expired stays expired", StatusExpired, nil, StatusExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Assignment{Status: tt.status, ExpiresAt: tt.expiresAt}
			if got := a.EffectiveStatus(now); got != tt.want {
				t.Errorf("EffectiveStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInvitationExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	a := &Assignment{Status: StatusPending, ExpiresAt: &past}
	if !a.InvitationExpired(now) {
		t.Error("expected pending assignment with past expiry to be expired")
	}

	a = &Assignment{Status: StatusPending, ExpiresAt: &future}
	if a.InvitationExpired(now) {
		t.Error("expected pending assignment with future expiry to be acceptable")
	}

	a = &Assignment{Status: StatusActive, ExpiresAt: &past}
	if a.InvitationExpired(now) {
		t.Error("active assignment is not a pending invitation")
	}
}

func TestOverrideActiveAt(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	if !(Override{Resource: "payment", Operation: "delete"}).ActiveAt(now) {
		t.Error("override without expiry should be active")
	}
	if !(Override{ExpiresAt: &future}).ActiveAt(now) {
		t.Error("override with future expiry should be active")
	}
	if (Override{ExpiresAt: &past}).ActiveAt(now) {
		t.Error("override with past expiry should be inert")
	}
}

func TestResolveOverrides(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)

	a := &Assignment{
		ID:        id.NewAssignmentID(),
		UserID:    "user-1",
		RetreatID: "retreat-1",
		Status:    StatusActive,
		Overrides: []Override{
			{Resource: "payment", Operation: "delete", Granted: false},
			{Resource: "session", Operation: "create", Granted: true},
			{Resource: "report", Operation: "view", Granted: true, ExpiresAt: &past},
		},
	}

	granted, denied := ResolveOverrides(a, now)

	if _, ok := denied["payment:delete"]; !ok {
		t.Error("expected payment:delete in denied set")
	}
	if _, ok := granted["session:create"]; !ok {
		t.Error("expected session:create in granted set")
	}
	if _, ok := granted["report:view"]; ok {
		t.Error("expired override should not contribute a grant")
	}
	if len(granted) != 1 || len(denied) != 1 {
		t.Errorf("unexpected set sizes: granted=%d denied=%d", len(granted), len(denied))
	}
}
