package tokenguard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/tokenguard/jwt"
)

func TestLogoutRevokesSession(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := context.Background()
	pair := mustLogin(t, env.engine, ctx, "alice@example.com")
	keep := mustLogin(t, env.engine, ctx, "alice@example.com")

	if err := env.engine.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := env.engine.ValidateAccess(ctx, pair.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked after logout, got %v", err)
	}
	if _, err := env.engine.ValidateAccess(ctx, keep.AccessToken); err != nil {
		t.Fatalf("logout must not touch other sessions: %v", err)
	}

	if err := env.engine.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("repeated logout must be a no-op, got %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricLogout]; got != 1 {
		t.Fatalf("expected one logout metric, got %d", got)
	}
}

func TestLogoutErrors(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := context.Background()

	if err := env.engine.Logout(ctx, ""); !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing, got %v", err)
	}
	if err := env.engine.Logout(ctx, "garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}

	orphan, _, err := env.engine.issuer.IssueRefresh(jwt.Identity{UserID: "u-alice", SessionID: "orphan"})
	if err != nil {
		t.Fatalf("IssueRefresh failed: %v", err)
	}
	if err := env.engine.Logout(ctx, orphan); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestLogoutAcceptsExpiredRefreshToken(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := context.Background()
	pair := mustLogin(t, env.engine, ctx, "alice@example.com")

	env.clock.Advance(8 * 24 * time.Hour)
	if err := env.engine.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("expired token should still log out: %v", err)
	}
	row, _ := env.sessions.FindByID(ctx, pair.SessionID)
	if !row.IsRevoked {
		t.Fatal("expected revoked row")
	}
}

func TestRevokeSession(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := context.Background()
	first := mustLogin(t, env.engine, ctx, "alice@example.com")
	second := mustLogin(t, env.engine, ctx, "alice@example.com")

	if err := env.engine.RevokeSession(ctx, "u-root", first.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("foreign session must look missing, got %v", err)
	}
	if err := env.engine.RevokeSession(ctx, "u-alice", first.SessionID); err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if err := env.engine.RevokeSession(ctx, "u-alice", first.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("revoking twice must report not found, got %v", err)
	}
	if err := env.engine.RevokeSession(ctx, "u-alice", "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	if _, err := env.engine.ValidateAccess(ctx, first.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
	if _, err := env.engine.ValidateAccess(ctx, second.AccessToken); err != nil {
		t.Fatalf("other session must stay valid: %v", err)
	}

	active, _ := env.engine.ListActiveSessions(ctx, "u-alice")
	if len(active) != 1 || active[0].ID != second.SessionID {
		t.Fatalf("unexpected active sessions %+v", active)
	}
}

func TestRevokeAllSessions(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := context.Background()

	var pairs []*TokenPair
	for i := 0; i < 3; i++ {
		pairs = append(pairs, mustLogin(t, env.engine, ctx, "alice@example.com"))
		env.clock.Advance(time.Second)
	}
	root := mustLogin(t, env.engine, ctx, "root@example.com")

	n, err := env.engine.RevokeAllSessions(ctx, "u-alice")
	if err != nil {
		t.Fatalf("RevokeAllSessions failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 revoked sessions, got %d", n)
	}
	for _, p := range pairs {
		if _, err := env.engine.ValidateAccess(ctx, p.AccessToken); !errors.Is(err, ErrTokenRevoked) {
			t.Fatalf("expected ErrTokenRevoked, got %v", err)
		}
	}
	if _, err := env.engine.ValidateAccess(ctx, root.AccessToken); err != nil {
		t.Fatalf("other user must be untouched: %v", err)
	}

	n, err = env.engine.RevokeAllSessions(ctx, "u-alice")
	if err != nil || n != 0 {
		t.Fatalf("second revoke-all should revoke nothing: %d %v", n, err)
	}
}

func TestBlacklistEntriesExpireWithTheirTokens(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := context.Background()
	pair := mustLogin(t, env.engine, ctx, "alice@example.com")

	if _, err := env.engine.RevokeAllSessions(ctx, "u-alice"); err != nil {
		t.Fatalf("RevokeAllSessions failed: %v", err)
	}
	accessHash := jwt.Hash(pair.AccessToken)
	refreshHash := jwt.Hash(pair.RefreshToken)
	if !env.cache.IsBlacklisted(ctx, accessHash) || !env.cache.IsBlacklisted(ctx, refreshHash) {
		t.Fatal("expected both tokens blacklisted")
	}

	env.clock.Advance(16 * time.Minute)
	if env.cache.IsBlacklisted(ctx, accessHash) {
		t.Fatal("access marker must expire with the access token")
	}
	if !env.cache.IsBlacklisted(ctx, refreshHash) {
		t.Fatal("refresh marker must outlive the access token")
	}

	env.clock.Advance(7 * 24 * time.Hour)
	if env.cache.Len() != 0 {
		t.Fatalf("expected empty cache after refresh expiry, got %d", env.cache.Len())
	}
}

func TestListActiveSessionsNewestFirst(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := context.Background()

	first := mustLogin(t, env.engine, ctx, "alice@example.com")
	env.clock.Advance(time.Minute)
	second := mustLogin(t, env.engine, ctx, "alice@example.com")

	active, err := env.engine.ListActiveSessions(ctx, "u-alice")
	if err != nil {
		t.Fatalf("ListActiveSessions failed: %v", err)
	}
	if len(active) != 2 || active[0].ID != second.SessionID || active[1].ID != first.SessionID {
		t.Fatalf("expected newest first, got %+v", active)
	}
}

func TestLoggedOutAccessTokenStaysRevokedThroughLeeway(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := context.Background()
	pair := mustLogin(t, env.engine, ctx, "alice@example.com")

	if err := env.engine.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	// Past exp but inside the 30s verification leeway.
	env.clock.Advance(15*time.Minute + 10*time.Second)
	if _, err := env.engine.ValidateAccess(ctx, pair.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked inside the leeway, got %v", err)
	}

	env.clock.Advance(30 * time.Second)
	if _, err := env.engine.ValidateAccess(ctx, pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired past the leeway, got %v", err)
	}
}
