package contentcache

import (
	"context"
	"testing"
)

func TestLRUPutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fs := NewFilesystemStore(dir)
	cache := NewLRU(fs, 0, 0)

	hash, err := cache.Put(context.Background(), "skills/acme/widget/SKILL.md", []byte("hello"))
	if err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if !ValidHash(hash) {
		t.Errorf("Put() hash %q is not a valid sha256 digest", hash)
	}

	content, gotHash, err := cache.Get(context.Background(), "skills/acme/widget/SKILL.md")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if string(content) != "hello" {
		t.Errorf("Get() content = %q, want %q", content, "hello")
	}
	if gotHash != hash {
		t.Errorf("Get() hash = %q, want %q", gotHash, hash)
	}
}

func TestLRUEvictsOldestFraction(t *testing.T) {
	dir := t.TempDir()
	fs := NewFilesystemStore(dir)
	cache := NewLRU(fs, 10, 0.2)

	for i := 0; i < 11; i++ {
		key := keyForIndex(i)
		if _, err := cache.Put(context.Background(), key, []byte("x")); err != nil {
			t.Fatalf("Put(%d) error: %v", i, err)
		}
	}

	if cache.Len() > 10 {
		t.Errorf("Len() = %d, want <= 10 after eviction", cache.Len())
	}

	// the very first entries inserted should have been pruned first (LRU order)
	if _, ok := cache.index["skills/0"]; ok {
		t.Error("oldest entry should have been evicted")
	}
}

func TestLRUGetFallsThroughToStore(t *testing.T) {
	dir := t.TempDir()
	fs := NewFilesystemStore(dir)

	hash, err := fs.Put(context.Background(), "skills/direct", []byte("direct-write"))
	if err != nil {
		t.Fatalf("fs.Put() error: %v", err)
	}

	cache := NewLRU(fs, 0, 0)
	content, gotHash, err := cache.Get(context.Background(), "skills/direct")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if string(content) != "direct-write" || gotHash != hash {
		t.Errorf("Get() = (%q, %q), want (%q, %q)", content, gotHash, "direct-write", hash)
	}
}

func TestValidHash(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"sha256:" + repeatHex("a", 64), true},
		{"sha256:" + repeatHex("A", 64), false},
		{"sha1:" + repeatHex("a", 40), false},
		{"not-a-hash", false},
	}
	for _, tt := range tests {
		if got := ValidHash(tt.in); got != tt.want {
			t.Errorf("ValidHash(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func keyForIndex(i int) string {
	return "skills/" + string(rune('0'+i))
}

func repeatHex(s string, n int) string {
	out := make([]byte, 0, n*len(s))
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
