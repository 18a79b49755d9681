package lockout

import (
	"errors"
	"time"
)

// Policy holds the lockout thresholds.
type Policy struct {
	MaxAttempts     int
	ResetWindow     time.Duration
	LockoutDuration time.Duration
}

// DefaultPolicy returns 5 attempts, a 30 minute streak window and a 15
// minute lock.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     5,
		ResetWindow:     30 * time.Minute,
		LockoutDuration: 15 * time.Minute,
	}
}

// State is the lockout slice of a user record. Zero times mean "unset".
type State struct {
	FailedAttempts int
	LastFailedAt   time.Time
	LockedUntil    time.Time
}

// Guard applies a [Policy] to [State] transitions. It holds no per-user
// data and is safe for concurrent use.
type Guard struct {
	policy Policy
}

// New validates p and returns a [Guard].
func New(p Policy) (*Guard, error) {
	if p.MaxAttempts <= 0 {
		return nil, errors.New("lockout max attempts must be > 0")
	}
	if p.ResetWindow <= 0 {
		return nil, errors.New("lockout reset window must be > 0")
	}
	if p.LockoutDuration <= 0 {
		return nil, errors.New("lockout duration must be > 0")
	}
	return &Guard{policy: p}, nil
}

// Policy returns the configured thresholds.
func (g *Guard) Policy() Policy { return g.policy }

// Locked reports whether s is locked at now and for how much longer.
func (g *Guard) Locked(s State, now time.Time) (bool, time.Duration) {
	if s.LockedUntil.IsZero() || !now.Before(s.LockedUntil) {
		return false, 0
	}
	return true, s.LockedUntil.Sub(now)
}

// RecordFailure applies one failed attempt. A streak older than the reset
// window restarts from zero. lockedNow is true when this failure crossed the
// threshold.
func (g *Guard) RecordFailure(s State, now time.Time) (next State, lockedNow bool) {
	next = s
	if !next.LastFailedAt.IsZero() && now.Sub(next.LastFailedAt) > g.policy.ResetWindow {
		next.FailedAttempts = 0
	}
	next.FailedAttempts++
	next.LastFailedAt = now

	if next.FailedAttempts >= g.policy.MaxAttempts {
		next.LockedUntil = now.Add(g.policy.LockoutDuration)
		return next, true
	}
	return next, false
}

// RecordSuccess clears the counters after a successful login. changed is
// false when there was nothing to clear, so callers can skip a write.
func (g *Guard) RecordSuccess(s State) (next State, changed bool) {
	if s.FailedAttempts == 0 && s.LockedUntil.IsZero() && s.LastFailedAt.IsZero() {
		return s, false
	}
	return State{}, true
}

// Unlock returns the administratively reset state, independent of the timer.
func Unlock() State {
	return State{}
}

// RemainingMinutes rounds d up to whole minutes, with a floor of 1.
func RemainingMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	m := int((d + time.Minute - 1) / time.Minute)
	if m < 1 {
		m = 1
	}
	return m
}
