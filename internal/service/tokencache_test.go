package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/arcadelocator/arcade-api/internal/model"
)

func TestTokenCacheSetGet(t *testing.T) {
	cache := NewTokenCache(10, time.Minute, time.Hour)

	bundle := model.TokenBundle{AccessToken: "tok", TokenType: "Bearer", ExpiresIn: 3600}
	cache.Set("raw-key", bundle)

	got, ok := cache.Get("raw-key")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.AccessToken != "tok" {
		t.Errorf("AccessToken = %q", got.AccessToken)
	}

	if _, ok := cache.Get("other-key"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestTokenCacheReturnsCopies(t *testing.T) {
	cache := NewTokenCache(10, time.Minute, time.Hour)
	cache.Set("k", model.TokenBundle{ExpiresIn: 3600})

	a, _ := cache.Get("k")
	a.ExpiresIn = 1 // must not affect the stored entry

	b, _ := cache.Get("k")
	if b.ExpiresIn != 3600 {
		t.Errorf("stored bundle mutated: ExpiresIn = %d", b.ExpiresIn)
	}
}

func TestTokenCacheLRUEviction(t *testing.T) {
	cache := NewTokenCache(2, time.Minute, time.Hour)

	cache.Set("a", model.TokenBundle{AccessToken: "a"})
	cache.Set("b", model.TokenBundle{AccessToken: "b"})
	cache.Set("c", model.TokenBundle{AccessToken: "c"}) // evicts "a"

	if cache.Len() != 2 {
		t.Fatalf("Len = %d, want 2", cache.Len())
	}
	if _, ok := cache.Get("a"); ok {
		t.Error("expected oldest entry to be evicted")
	}
	if _, ok := cache.Get("c"); !ok {
		t.Error("expected newest entry to survive")
	}
}

func TestTokenCacheTTLClampedToTokenLifetime(t *testing.T) {
	// Cache TTL asks for 1 minute but the token only lives 30ms, so the
	// entry must be gone once the token lifetime has passed.
	cache := NewTokenCache(10, time.Minute, 30*time.Millisecond)

	cache.Set("k", model.TokenBundle{AccessToken: "tok"})
	if _, ok := cache.Get("k"); !ok {
		t.Fatal("expected immediate hit")
	}

	time.Sleep(60 * time.Millisecond)
	if _, ok := cache.Get("k"); ok {
		t.Error("entry outlived the token lifetime")
	}
}

func TestTokenCacheDefaults(t *testing.T) {
	cache := NewTokenCache(0, 0, 0)
	for i := 0; i < DefaultCacheSize+20; i++ {
		cache.Set(fmt.Sprintf("key-%d", i), model.TokenBundle{})
	}
	if cache.Len() != DefaultCacheSize {
		t.Errorf("Len = %d, want default capacity %d", cache.Len(), DefaultCacheSize)
	}
}
