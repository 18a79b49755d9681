package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process [Store]. The mutex makes MarkRevoked an
// atomic compare-and-set.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[string]*Session
	byHash map[string]string
	now    func() time.Time
}

// NewMemoryStore returns an empty [MemoryStore]. now may be nil.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		byID:   make(map[string]*Session),
		byHash: make(map[string]string),
		now:    now,
	}
}

// Create implements [Store].
func (m *MemoryStore) Create(_ context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := sess.Clone()
	m.byID[c.ID] = c
	m.byHash[c.TokenHash] = c.ID
	return nil
}

// FindByTokenHash implements [Store].
func (m *MemoryStore) FindByTokenHash(_ context.Context, tokenHash string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byHash[tokenHash]
	if !ok {
		return nil, ErrNotFound
	}
	return m.byID[id].Clone(), nil
}

// FindByID implements [Store].
func (m *MemoryStore) FindByID(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess.Clone(), nil
}

// MarkRevoked implements [Store].
func (m *MemoryStore) MarkRevoked(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byHash[tokenHash]
	if !ok {
		return ErrNotFound
	}
	sess := m.byID[id]
	if sess.IsRevoked {
		return ErrAlreadyRevoked
	}
	sess.IsRevoked = true
	sess.RevokedAt = m.now()
	return nil
}

// MarkAllRevokedForUser implements [Store].
func (m *MemoryStore) MarkAllRevokedForUser(_ context.Context, userID string) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var out []*Session
	for _, sess := range m.byID {
		if sess.UserID != userID || sess.IsRevoked {
			continue
		}
		sess.IsRevoked = true
		sess.RevokedAt = now
		out = append(out, sess.Clone())
	}
	sortNewestFirst(out)
	return out, nil
}

// ListActive implements [Store].
func (m *MemoryStore) ListActive(_ context.Context, userID string, now time.Time) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*Session{}
	for _, sess := range m.byID {
		if sess.UserID == userID && sess.Active(now) {
			out = append(out, sess.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// DeleteExpired implements [Store].
func (m *MemoryStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, sess := range m.byID {
		if sess.ExpiresAt.Before(before) {
			delete(m.byHash, sess.TokenHash)
			delete(m.byID, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored rows, revoked or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func sortNewestFirst(sessions []*Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].IssuedAt.Equal(sessions[j].IssuedAt) {
			return sessions[i].ID > sessions[j].ID
		}
		return sessions[i].IssuedAt.After(sessions[j].IssuedAt)
	})
}
