package devauth

import (
	"strings"
	"testing"
)

func TestGenerateRefreshTokenShapeAndHash(t *testing.T) {
	raw, prefix, hash, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}

	if !strings.HasPrefix(raw, RefreshTokenPrefix) {
		t.Fatalf("raw token %q missing prefix %q", raw, RefreshTokenPrefix)
	}
	if !strings.HasPrefix(raw, prefix) {
		t.Fatalf("raw token %q does not start with display prefix %q", raw, prefix)
	}
	if prefix == raw {
		t.Fatal("display prefix should be shorter than the full raw token")
	}
	if hash != HashRefreshToken(raw) {
		t.Fatal("returned hash does not match HashRefreshToken(raw)")
	}
}

func TestGenerateRefreshTokenUnique(t *testing.T) {
	raw1, _, _, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}
	raw2, _, _, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}
	if raw1 == raw2 {
		t.Fatal("expected two distinct refresh tokens")
	}
}

func TestHashRefreshTokenDeterministic(t *testing.T) {
	raw := "rgst_rt_deadbeef"
	if HashRefreshToken(raw) != HashRefreshToken(raw) {
		t.Fatal("expected hashing the same input twice to be deterministic")
	}
	if HashRefreshToken(raw) == HashRefreshToken(raw+"x") {
		return
	}
	t.Fatal("expected different inputs to hash differently")
}
