package tokenguard

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/tokenguard/internal/lockout"
)

// MemoryUserStore is a [UserStore] held in process memory. It backs the
// example server and tests; production deployments use the postgres store.
type MemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[string]*UserRecord
	byEmail map[string]string
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[string]*UserRecord),
		byEmail: make(map[string]string),
	}
}

// Put inserts or replaces a user. Emails are matched case-insensitively.
func (s *MemoryUserStore) Put(u UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.byID[u.ID]; ok {
		delete(s.byEmail, normalizeEmail(prev.Email))
	}
	rec := u
	s.byID[u.ID] = &rec
	s.byEmail[normalizeEmail(u.Email)] = u.ID
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	rec := *s.byID[id]
	return &rec, nil
}

func (s *MemoryUserStore) FindByID(_ context.Context, userID string) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	rec := *u
	return &rec, nil
}

func (s *MemoryUserStore) UpdateLockout(_ context.Context, userID string, state LockoutState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.Lockout = state
	return nil
}

// RecordLoginFailure implements [LockoutRecorder] under the store lock.
func (s *MemoryUserStore) RecordLoginFailure(_ context.Context, userID string, now time.Time, policy LockoutPolicy) (LockoutState, error) {
	guard, err := lockout.New(policy)
	if err != nil {
		return LockoutState{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return LockoutState{}, ErrUserNotFound
	}
	u.Lockout, _ = guard.RecordFailure(u.Lockout, now)
	return u.Lockout, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
