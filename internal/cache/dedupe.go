// Package cache remembers the fingerprints of every message that left the
// generator, so byte-identical text is never sent twice.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"
)

// DedupeStore answers "has this exact text been sent before".
type DedupeStore interface {
	Seen(ctx context.Context, hash string) (bool, error)
	Record(ctx context.Context, hash string) error
}

// HashMessage produces a normalized fingerprint: case and whitespace runs do
// not count as difference.
func HashMessage(text string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}

type memoryEntry struct {
	CreatedAt time.Time
	ExpiresAt time.Time
}

type MemoryConfig struct {
	TTL        time.Duration
	MaxEntries int
}

// MemoryDedupeStore keeps fingerprints in process memory with a TTL and a
// size cap.
type MemoryDedupeStore struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	ttl        time.Duration
	maxEntries int
}

func NewMemoryDedupeStore(config MemoryConfig) *MemoryDedupeStore {
	if config.TTL <= 0 {
		config.TTL = 90 * 24 * time.Hour
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 10000
	}
	return &MemoryDedupeStore{
		entries:    make(map[string]memoryEntry),
		ttl:        config.TTL,
		maxEntries: config.MaxEntries,
	}
}

func (s *MemoryDedupeStore) Seen(_ context.Context, hash string) (bool, error) {
	s.mu.RLock()
	entry, exists := s.entries[hash]
	s.mu.RUnlock()

	if !exists {
		return false, nil
	}
	if time.Now().UTC().After(entry.ExpiresAt) {
		s.mu.Lock()
		delete(s.entries, hash)
		s.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (s *MemoryDedupeStore) Record(_ context.Context, hash string) error {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) >= s.maxEntries {
		s.evictOldest()
	}
	s.entries[hash] = memoryEntry{CreatedAt: now, ExpiresAt: now.Add(s.ttl)}
	return nil
}

func (s *MemoryDedupeStore) evictOldest() {
	if len(s.entries) == 0 {
		return
	}

	type pair struct {
		key   string
		value memoryEntry
	}
	pairs := make([]pair, 0, len(s.entries))
	for key, value := range s.entries {
		pairs = append(pairs, pair{key: key, value: value})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].value.CreatedAt.Before(pairs[j].value.CreatedAt)
	})
	delete(s.entries, pairs[0].key)
}
