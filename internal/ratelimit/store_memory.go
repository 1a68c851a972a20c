package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the single-process fallback used when redis is not
// configured, and the reference implementation the redis script mirrors.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string][]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string][]time.Time{}}
}

func (s *MemoryStore) Take(ctx context.Context, key string, now time.Time, policy Policy) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	windowStart := now.Add(-policy.Window)
	burstStart := now.Add(-BurstWindow)

	kept := s.entries[key][:0]
	burstCount := 0
	for _, ts := range s.entries[key] {
		if !ts.After(windowStart) {
			continue
		}
		kept = append(kept, ts)
		if ts.After(burstStart) {
			burstCount++
		}
	}

	result := Result{
		WindowCount: len(kept),
		BurstCount:  burstCount,
	}
	if len(kept) > 0 {
		result.OldestInWin = kept[0]
	}

	if len(kept) < policy.Limit && burstCount < policy.Burst {
		kept = append(kept, now)
		result.Allowed = true
		result.WindowCount++
		result.BurstCount++
	}

	s.entries[key] = kept
	return result, nil
}
