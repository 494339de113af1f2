package otp

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps live challenges in process memory. State is lost on
// restart; multi-process deployments should use the redis store
// instead.
type MemoryStore struct {
	mu         sync.Mutex
	challenges map[string]Challenge
	now        func() time.Time
}

// NewMemoryStore creates an empty in-process challenge store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		challenges: make(map[string]Challenge),
		now:        time.Now,
	}
}

// Put stores the challenge, overwriting any prior one for the key. It
// also sweeps expired challenges for other keys; the sweep is
// best-effort housekeeping, the engine re-checks expiry on redemption.
func (m *MemoryStore) Put(ctx context.Context, key string, ch Challenge, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, v := range m.challenges {
		if k != key && now.After(v.ExpiresAt) {
			delete(m.challenges, k)
		}
	}

	m.challenges[key] = ch
	return nil
}

// Get returns the live challenge for the key, if any.
func (m *MemoryStore) Get(ctx context.Context, key string) (Challenge, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.challenges[key]
	return ch, ok, nil
}

// Delete removes the challenge for the key.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.challenges, key)
	return nil
}
