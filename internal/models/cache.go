package models

import "time"

// AnonymousUser is the cache key used before a session is established.
const AnonymousUser = "anonymous"

// CacheEntry is a merged photo list memoized per user. Validity is
// advisory: stale entries are discarded on read, not actively evicted.
type CacheEntry struct {
	Photos    []PhotoRecord `json:"photos"`
	Timestamp time.Time     `json:"timestamp"`
}

// Age returns how long ago the entry was written.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.Timestamp)
}

// Expired reports whether the entry is at or past its validity window.
func (e *CacheEntry) Expired(now time.Time, ttl time.Duration) bool {
	return e.Age(now) >= ttl
}
