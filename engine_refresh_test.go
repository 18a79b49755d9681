package tokenguard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/tokenguard/jwt"
)

func TestRefreshRotatesSession(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := context.Background()
	first := mustLogin(t, env.engine, ctx, "alice@example.com")

	env.clock.Advance(time.Minute)
	second, err := env.engine.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if second.SessionID == first.SessionID || second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh must mint a new session and token")
	}

	old, _ := env.sessions.FindByID(ctx, first.SessionID)
	if !old.IsRevoked {
		t.Fatal("consumed session must be revoked")
	}

	active, _ := env.engine.ListActiveSessions(ctx, "u-alice")
	if len(active) != 1 || active[0].ID != second.SessionID {
		t.Fatalf("expected only the rotated session to be active, got %+v", active)
	}

	res, err := env.engine.ValidateAccess(ctx, second.AccessToken)
	if err != nil || res.UserID != "u-alice" || res.Role != "member" {
		t.Fatalf("rotated access token invalid: %+v %v", res, err)
	}

	if _, err := env.engine.Refresh(ctx, second.RefreshToken); err != nil {
		t.Fatalf("rotated refresh token must be usable: %v", err)
	}
}

func TestRefreshReplayRevokesEverySession(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := context.Background()

	a := mustLogin(t, env.engine, ctx, "alice@example.com")
	other := mustLogin(t, env.engine, ctx, "alice@example.com")
	bystander := mustLogin(t, env.engine, ctx, "root@example.com")

	b, err := env.engine.Refresh(ctx, a.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if _, err := env.engine.Refresh(ctx, a.RefreshToken); !errors.Is(err, ErrTokenReuseDetected) {
		t.Fatalf("expected ErrTokenReuseDetected on replay, got %v", err)
	}

	active, _ := env.engine.ListActiveSessions(ctx, "u-alice")
	if len(active) != 0 {
		t.Fatalf("replay must revoke every session, %d still active", len(active))
	}

	if _, err := env.engine.Refresh(ctx, b.RefreshToken); !errors.Is(err, ErrTokenReuseDetected) && !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("descendant refresh token must be dead, got %v", err)
	}
	for _, tok := range []string{a.AccessToken, b.AccessToken, other.AccessToken} {
		if _, err := env.engine.ValidateAccess(ctx, tok); !errors.Is(err, ErrTokenRevoked) {
			t.Fatalf("expected ErrTokenRevoked for contained access token, got %v", err)
		}
	}

	if _, err := env.engine.ValidateAccess(ctx, bystander.AccessToken); err != nil {
		t.Fatalf("another user's session must be untouched: %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricRefreshReuseDetected]; got < 1 {
		t.Fatalf("expected reuse metric, got %d", got)
	}
}

func TestRefreshWithoutSessionRowIsReuse(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := context.Background()
	live := mustLogin(t, env.engine, ctx, "alice@example.com")

	forged, _, err := env.engine.issuer.IssueRefresh(jwt.Identity{UserID: "u-alice", SessionID: "no-such-session"})
	if err != nil {
		t.Fatalf("IssueRefresh failed: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, forged); !errors.Is(err, ErrTokenReuseDetected) {
		t.Fatalf("expected ErrTokenReuseDetected, got %v", err)
	}
	if _, err := env.engine.ValidateAccess(ctx, live.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("containment must reach live sessions, got %v", err)
	}
}

func TestRefreshRejectsBadTokensWithoutSideEffects(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := context.Background()
	pair := mustLogin(t, env.engine, ctx, "alice@example.com")

	if _, err := env.engine.Refresh(ctx, ""); !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, "not-a-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, pair.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("access token must not refresh, got %v", err)
	}

	active, _ := env.engine.ListActiveSessions(ctx, "u-alice")
	if len(active) != 1 {
		t.Fatalf("invalid tokens must not touch sessions, %d active", len(active))
	}

	env.clock.Advance(8 * 24 * time.Hour)
	if _, err := env.engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	row, _ := env.sessions.FindByID(ctx, pair.SessionID)
	if row.IsRevoked {
		t.Fatal("expired token must not trigger revocation")
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricRefreshReuseDetected]; got != 0 {
		t.Fatalf("bad tokens are not reuse, got %d", got)
	}
}

func TestRefreshOldAccessTokenSurvivesOnlyGrace(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := context.Background()
	first := mustLogin(t, env.engine, ctx, "alice@example.com")

	second, err := env.engine.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if _, err := env.engine.ValidateAccess(ctx, first.AccessToken); err != nil {
		t.Fatalf("old access token must work inside the grace period: %v", err)
	}

	env.clock.Advance(11 * time.Second)
	if _, err := env.engine.ValidateAccess(ctx, first.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked after grace, got %v", err)
	}
	if _, err := env.engine.ValidateAccess(ctx, second.AccessToken); err != nil {
		t.Fatalf("new access token must stay valid: %v", err)
	}
}

func TestRefreshReplayInsideGraceIsStillReuse(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := context.Background()
	first := mustLogin(t, env.engine, ctx, "alice@example.com")

	if _, err := env.engine.Refresh(ctx, first.RefreshToken); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	env.clock.Advance(2 * time.Second)
	if _, err := env.engine.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrTokenReuseDetected) {
		t.Fatalf("the session row is authoritative for rotation, got %v", err)
	}
}

func TestRefreshSuspiciousFingerprintIsReportedNotEnforced(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	pair := mustLogin(t, env.engine, clientCtx("203.0.113.5", chromeWindowsUA), "alice@example.com")

	rotated, err := env.engine.Refresh(clientCtx("198.51.100.9", firefoxLinuxUA), pair.RefreshToken)
	if err != nil {
		t.Fatalf("fingerprint change must not block refresh: %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricSuspiciousFingerprint]; got != 1 {
		t.Fatalf("expected one suspicious-fingerprint metric, got %d", got)
	}

	row, _ := env.sessions.FindByID(context.Background(), rotated.SessionID)
	if row.IPAddress != "203.0.113.5" || row.UserAgent != chromeWindowsUA {
		t.Fatalf("rotated session must inherit the original context, got %+v", row)
	}

	again, err := env.engine.Refresh(clientCtx("203.0.113.77", chromeWindowsUA), rotated.RefreshToken)
	if err != nil || again == nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricSuspiciousFingerprint]; got != 1 {
		t.Fatalf("same network and family is not suspicious, metric now %d", got)
	}
}

func TestConcurrentRefreshContainsAllSessions(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		env := newTestEnv(t, testConfig(), nil)
		runConcurrentRefresh(t, env.engine)
	})
	t.Run("redis", func(t *testing.T) {
		engine, _, _ := newRedisTestEnv(t, testConfig())
		runConcurrentRefresh(t, engine)
	})
}

func runConcurrentRefresh(t *testing.T, engine *Engine) {
	t.Helper()
	ctx := context.Background()
	pair := mustLogin(t, engine, ctx, "alice@example.com")

	const workers = 16
	type result struct {
		pair *TokenPair
		err  error
	}
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make(chan result, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			p, err := engine.Refresh(ctx, pair.RefreshToken)
			results <- result{pair: p, err: err}
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	var winners []*TokenPair
	reuse := 0
	for r := range results {
		switch {
		case r.err == nil:
			winners = append(winners, r.pair)
		case errors.Is(r.err, ErrTokenReuseDetected):
			reuse++
		default:
			t.Fatalf("unexpected refresh error: %v", r.err)
		}
	}
	if len(winners) > 1 {
		t.Fatalf("at most one concurrent refresh may succeed, got %d", len(winners))
	}
	if reuse < workers-1 {
		t.Fatalf("expected at least %d reuse detections, got %d", workers-1, reuse)
	}

	// The losers' containment must also cover the winner's new session.
	active, err := engine.ListActiveSessions(ctx, "u-alice")
	if err != nil {
		t.Fatalf("ListActiveSessions failed: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected every session revoked, %d still active", len(active))
	}
	for _, w := range winners {
		if _, err := engine.ValidateAccess(ctx, w.AccessToken); !errors.Is(err, ErrTokenRevoked) {
			t.Fatalf("winner's access token must be revoked, got %v", err)
		}
	}
}

func TestRefreshAfterSweepInsideLeewayIsExpired(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	ctx := context.Background()
	phone := mustLogin(t, env.engine, ctx, "alice@example.com")

	env.clock.Advance(7*24*time.Hour - time.Hour)
	laptop := mustLogin(t, env.engine, ctx, "alice@example.com")

	env.clock.Advance(time.Hour + 10*time.Second)
	n, err := env.sessions.DeleteExpired(ctx, env.clock.Now())
	if err != nil || n != 1 {
		t.Fatalf("expected the phone row swept, got %d %v", n, err)
	}

	if _, err := env.engine.Refresh(ctx, phone.RefreshToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired for a swept row inside the leeway, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, laptop.RefreshToken); err != nil {
		t.Fatalf("other devices must keep working: %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricRefreshReuseDetected]; got != 0 {
		t.Fatalf("expiry is not reuse, got %d", got)
	}
}
