package identity

import "testing"

func TestHashEmail(t *testing.T) {
	t.Parallel()

	// Same address, different spelling: one identity.
	a := HashEmail("Customer@Example.COM ")
	b := HashEmail("customer@example.com")
	if a != b {
		t.Fatalf("hash mismatch: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("hash length=%d, want 64 hex chars", len(a))
	}

	// Missing email hashes the literal "unknown".
	const unknownDigest = "b23a6a8439c0dde5515893e7c90c1e3233b8616e634470f20dc4928bcf3609bc"
	if got := HashEmail(""); got != unknownDigest {
		t.Fatalf("HashEmail(\"\")=%s, want %s", got, unknownDigest)
	}
	if got := HashEmail("   "); got != unknownDigest {
		t.Fatalf("HashEmail(blank)=%s, want %s", got, unknownDigest)
	}
}
