package store

import (
	"context"
	"sync"
	"time"

	"bloodlink/pkg/domain"
)

// sweepInterval bounds how often NewSession scans for expired entries.
const sweepInterval = time.Minute

type memorySession struct {
	session domain.Session
	expires time.Time
}

// MemorySessionStore keeps sessions in-process (single instance only).
type MemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]memorySession
	now      func() time.Time
	nextScan time.Time
}

// NewMemorySessionStore builds an in-memory session store with a fixed TTL.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		ttl:      ttl,
		sessions: make(map[string]memorySession),
		now:      time.Now,
	}
}

// NewSession binds a fresh token to the session projection.
func (s *MemorySessionStore) NewSession(_ context.Context, sess domain.Session) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if !now.Before(s.nextScan) {
		s.sweepLocked(now)
		s.nextScan = now.Add(sweepInterval)
	}
	s.sessions[token] = memorySession{session: sess, expires: now.Add(s.ttl)}
	return token, nil
}

// sweepLocked drops expired sessions that were never read again.
func (s *MemorySessionStore) sweepLocked(now time.Time) {
	for token, entry := range s.sessions {
		if !now.Before(entry.expires) {
			delete(s.sessions, token)
		}
	}
}

// GetSession resolves a token. Expired entries are evicted on access.
func (s *MemorySessionStore) GetSession(_ context.Context, token string) (domain.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[token]
	if !ok {
		return domain.Session{}, false, nil
	}
	if !s.now().Before(entry.expires) {
		delete(s.sessions, token)
		return domain.Session{}, false, nil
	}
	return entry.session, true, nil
}

// DeleteSession removes a token. Unknown tokens are ignored.
func (s *MemorySessionStore) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}
