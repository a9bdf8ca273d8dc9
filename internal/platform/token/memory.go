package token

import (
	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore is a server-side Store backing: tokens live in an in-process
// TTL cache instead of client cookies. It serves deployments that keep the
// pair out of the browser entirely, and tests that need a Store without an
// HTTP round-trip. Each token expires on its own policy TTL, mirroring the
// distinct cookie max-ages of CookieStore.
type MemoryStore struct {
	cache  *ttlcache.Cache[Kind, string]
	policy Policy
}

func NewMemoryStore(policy Policy) *MemoryStore {
	cache := ttlcache.New[Kind, string]()
	go cache.Start()
	return &MemoryStore{cache: cache, policy: policy}
}

func (s *MemoryStore) Get(kind Kind) string {
	item := s.cache.Get(kind)
	if item == nil {
		return ""
	}
	return item.Value()
}

func (s *MemoryStore) Set(pair Pair) {
	s.cache.Set(Access, pair.Access, s.policy.AccessTTL)
	s.cache.Set(Refresh, pair.Refresh, s.policy.RefreshTTL)
}

func (s *MemoryStore) Clear() {
	s.cache.Delete(Access)
	s.cache.Delete(Refresh)
}

// Close stops the cache's expiry loop.
func (s *MemoryStore) Close() {
	s.cache.Stop()
}
