package cache

import (
	"context"
	"sync"
	"time"

	"github.com/talentsift/backend/internal/domain/shared"
)

type dedupEntry struct {
	expiresAt time.Time
}

// InMemoryDedupStore implements shared.IdempotencyStore with a local map.
// Suitable for single-instance deployments and tests. Multiple instances do
// not share state, so a redelivered webhook can be applied twice; the
// subscription state machine tolerates that, but metering events would not.
type InMemoryDedupStore struct {
	mu        sync.RWMutex
	entries   map[string]dedupEntry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryDedupStore creates the store and starts its expiry sweeper
func NewInMemoryDedupStore() *InMemoryDedupStore {
	store := &InMemoryDedupStore{
		entries:  make(map[string]dedupEntry),
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.sweepLoop()

	return store
}

// MarkProcessed claims an event ID. The first caller gets true; later callers
// get false until the TTL lapses.
func (s *InMemoryDedupStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, exists := s.entries[eventID]; exists && time.Now().Before(e.expiresAt) {
		return false, nil
	}

	s.entries[eventID] = dedupEntry{expiresAt: time.Now().Add(ttl)}
	return true, nil
}

// IsProcessed reports whether an event ID has an unexpired claim
func (s *InMemoryDedupStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[eventID]
	if !exists || time.Now().After(e.expiresAt) {
		return false, nil
	}
	return true, nil
}

// Release drops the claim on an event ID so a redelivery can be applied
func (s *InMemoryDedupStore) Release(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, eventID)
	return nil
}

// Close stops the sweeper. Safe to call more than once.
func (s *InMemoryDedupStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// Size returns the number of live entries, for tests
func (s *InMemoryDedupStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *InMemoryDedupStore) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *InMemoryDedupStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for eventID, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, eventID)
		}
	}
}

// Ensure InMemoryDedupStore implements IdempotencyStore
var _ shared.IdempotencyStore = (*InMemoryDedupStore)(nil)
