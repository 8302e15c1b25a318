package services

import (
	"context"
	"sync"
	"time"
)

// RevocationStore records tokens explicitly invalidated before their natural
// expiry. Tokens are self-verifying, so this list is what makes logout take
// effect immediately; every protected request checks it.
//
// The in-memory store below is process-local and intentionally so: this
// service deploys as a single instance. Horizontal scaling swaps in the
// Redis-backed store (blacklist_redis.go) behind the same interface.
type RevocationStore interface {
	// Revoke records the token until expiresAt. Revoking twice is harmless.
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	// IsRevoked reports whether the token is currently revoked. Entries past
	// their expiry count as not revoked.
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// MemoryRevocationStore keeps revoked tokens in a mutex-guarded map. Memory
// stays bounded without a background timer: every Revoke sweeps entries whose
// expiry has passed, and IsRevoked deletes stale hits lazily.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		entries: make(map[string]time.Time),
	}
}

func (s *MemoryRevocationStore) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Sweep before inserting so the map only holds entries still inside
	// their validity window.
	now := time.Now()
	for t, expiry := range s.entries {
		if !expiry.After(now) {
			delete(s.entries, t)
		}
	}

	s.entries[token] = expiresAt
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.entries[token]
	if !ok {
		return false, nil
	}
	if !expiry.After(time.Now()) {
		// Expired entry still in the map: clean up and treat as not revoked.
		delete(s.entries, token)
		return false, nil
	}
	return true, nil
}

// Len reports the current entry count. Used by tests to observe sweeping.
func (s *MemoryRevocationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
