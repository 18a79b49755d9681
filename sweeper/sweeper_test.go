package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/tokenguard/session"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func seed(t *testing.T, store session.Store, id string, issued time.Time, ttl time.Duration) {
	t.Helper()
	err := store.Create(context.Background(), &session.Session{
		ID:        id,
		UserID:    "u-1",
		TokenHash: "h-" + id,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(ttl),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestRunOnceDeletesOnlyExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := session.NewMemoryStore(func() time.Time { return now })
	seed(t, store, "old", now.Add(-8*24*time.Hour), 7*24*time.Hour)
	seed(t, store, "live", now, 7*24*time.Hour)
	seed(t, store, "revoked", now, 7*24*time.Hour)
	if err := store.MarkRevoked(context.Background(), "h-revoked"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	s := New(store, WithClock(func() time.Time { return now }))
	n, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deleted row, got %d", n)
	}
	if _, err := store.FindByID(context.Background(), "revoked"); err != nil {
		t.Fatalf("revoked unexpired row must survive: %v", err)
	}
	if runs, deleted := s.Stats(); runs != 1 || deleted != 1 {
		t.Fatalf("unexpected stats %d/%d", runs, deleted)
	}
}

func TestRunOnceHonoursGrace(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := session.NewMemoryStore(func() time.Time { return now })
	seed(t, store, "just-expired", now.Add(-2*time.Hour), time.Hour)

	s := New(store, WithClock(func() time.Time { return now }), WithGrace(3*time.Hour))
	if n, _ := s.RunOnce(context.Background()); n != 0 {
		t.Fatalf("row inside grace must be kept, deleted %d", n)
	}
}

type failingStore struct {
	session.Store
}

func (failingStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, errors.New("db down")
}

func TestRunOnceLogsFailure(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	s := New(failingStore{}, WithLogger(zap.New(core)))

	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if logs.FilterMessage("session sweep failed").Len() != 1 {
		t.Fatal("expected failure log entry")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := New(session.NewMemoryStore(nil))
	if err := s.Start(context.Background(), "not a schedule"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestStartRunsOnSchedule(t *testing.T) {
	s := New(session.NewMemoryStore(nil))
	if err := s.Start(context.Background(), "@every 1s"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	if err := s.Start(context.Background(), "@every 1s"); err == nil {
		t.Fatal("second Start must fail")
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if runs, _ := s.Stats(); runs > 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("scheduled sweep never ran")
}
