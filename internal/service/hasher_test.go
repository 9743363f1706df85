package service

import (
	"strings"
	"testing"
)

func TestLookupDigestDeterministic(t *testing.T) {
	const key = "0123456789abcdef0123456789abcdef"

	d1 := LookupDigest(key)
	d2 := LookupDigest(key)
	if d1 != d2 {
		t.Fatalf("digest not deterministic: %q vs %q", d1, d2)
	}
	if len(d1) != lookupHashLength {
		t.Fatalf("digest length = %d, want %d", len(d1), lookupHashLength)
	}
	if strings.Trim(d1, "0123456789abcdef") != "" {
		t.Fatalf("digest is not lowercase hex: %q", d1)
	}
	if LookupDigest("different key") == d1 {
		t.Fatal("different inputs produced the same digest")
	}
}

func TestVerificationHashSalted(t *testing.T) {
	const key = "my-api-key-secret"

	h1, err := VerificationHash(key)
	if err != nil {
		t.Fatalf("VerificationHash: %v", err)
	}
	h2, err := VerificationHash(key)
	if err != nil {
		t.Fatalf("VerificationHash(2): %v", err)
	}
	if h1 == h2 {
		t.Fatal("two hashes of the same key are equal - salt missing?")
	}
}

func TestCompareKey(t *testing.T) {
	const key = "correct-key"

	hash, err := VerificationHash(key)
	if err != nil {
		t.Fatalf("VerificationHash: %v", err)
	}

	if !CompareKey(key, hash) {
		t.Error("expected match for correct key")
	}
	if CompareKey("wrong-key", hash) {
		t.Error("expected mismatch for wrong key")
	}
	if CompareKey(key, "not-a-bcrypt-hash") {
		t.Error("expected mismatch for malformed hash")
	}
}
