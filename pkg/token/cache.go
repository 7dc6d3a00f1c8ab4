package token

import (
	"crypto/sha256"
	"sync"
	"time"
)

// verifyCacheTTL bounds how long a positive verification result is reused
// before the token is re-derived against the store.
const verifyCacheTTL = 30 * time.Second

// verifyCache memoises successful verifications so hot request paths skip
// the PBKDF2 derivation. Only positive results are cached; failures always
// hit the store. Any mutation of the token table flushes the whole cache.
type verifyCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[[32]byte]cacheEntry
}

type cacheEntry struct {
	info    Info
	expires time.Time
}

func newVerifyCache(ttl time.Duration) *verifyCache {
	return &verifyCache{
		ttl:     ttl,
		entries: make(map[[32]byte]cacheEntry),
	}
}

// cacheKey hashes the plaintext so bearer tokens are never retained in memory.
func cacheKey(plaintext string) [32]byte {
	return sha256.Sum256([]byte(plaintext))
}

func (c *verifyCache) get(plaintext string, now time.Time) (Info, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(plaintext)
	entry, ok := c.entries[key]
	if !ok {
		return Info{}, false
	}
	if now.After(entry.expires) {
		delete(c.entries, key)
		return Info{}, false
	}
	return entry.info, true
}

func (c *verifyCache) put(plaintext string, info Info, now time.Time) {
	expires := now.Add(c.ttl)
	// Never cache past the token's own expiry.
	if info.ExpiresAt != nil && info.ExpiresAt.Before(expires) {
		expires = *info.ExpiresAt
	}
	if !expires.After(now) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(plaintext)] = cacheEntry{info: info, expires: expires}
}

// flush drops every cached entry. Called after any token mutation so revoked
// or rescoped tokens take effect immediately.
func (c *verifyCache) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[[32]byte]cacheEntry)
}
