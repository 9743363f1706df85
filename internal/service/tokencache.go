package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/arcadelocator/arcade-api/internal/model"
)

// Defaults for the token cache when the configuration leaves them unset.
const (
	DefaultCacheSize = 500
	DefaultCacheTTL  = time.Hour
)

// TokenCache holds previously minted token bundles keyed by the raw API key,
// so repeated exchanges within the validity window skip the bcrypt comparison
// and signing work. Entries fall out after the TTL or once capacity forces
// LRU eviction. The cache is purely an optimization: exchange outcomes never
// depend on it, only their cost.
type TokenCache struct {
	lru *expirable.LRU[string, model.TokenBundle]
}

// NewTokenCache creates a cache with the given capacity and TTL. The TTL is
// clamped to tokenLifetime so a cached bundle can never outlive the signed
// expiry of the token it holds.
func NewTokenCache(size int, ttl, tokenLifetime time.Duration) *TokenCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if tokenLifetime > 0 && ttl > tokenLifetime {
		ttl = tokenLifetime
	}
	return &TokenCache{
		lru: expirable.NewLRU[string, model.TokenBundle](size, nil, ttl),
	}
}

// Get returns the cached bundle for a raw key, if present and unexpired.
// Bundles are returned by value so concurrent callers can adjust ExpiresIn
// without racing each other.
func (c *TokenCache) Get(rawKey string) (model.TokenBundle, bool) {
	return c.lru.Get(rawKey)
}

// Set stores a bundle under the raw key, replacing any existing entry.
func (c *TokenCache) Set(rawKey string, bundle model.TokenBundle) {
	c.lru.Add(rawKey, bundle)
}

// Len returns the number of live entries.
func (c *TokenCache) Len() int {
	return c.lru.Len()
}

// Purge drops every entry. Used in tests and on secret rotation.
func (c *TokenCache) Purge() {
	c.lru.Purge()
}
