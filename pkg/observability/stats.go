package observability

import (
	"context"
	"sync"
)

// CacheStats counts run cache events per table. It implements [CacheHooks].
type CacheStats struct {
	mu     sync.Mutex
	hits   map[string]int
	misses map[string]int
}

// NewCacheStats returns an empty counter.
func NewCacheStats() *CacheStats {
	return &CacheStats{hits: map[string]int{}, misses: map[string]int{}}
}

func (s *CacheStats) OnCacheHit(_ context.Context, table string) {
	s.mu.Lock()
	s.hits[table]++
	s.mu.Unlock()
}

func (s *CacheStats) OnCacheMiss(_ context.Context, table string) {
	s.mu.Lock()
	s.misses[table]++
	s.mu.Unlock()
}

func (s *CacheStats) OnCacheSet(context.Context, string, int) {}

// Counts returns hits and misses recorded for table.
func (s *CacheStats) Counts(table string) (hits, misses int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[table], s.misses[table]
}

var _ CacheHooks = (*CacheStats)(nil)
