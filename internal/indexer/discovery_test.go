package indexer

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/skillnest/registry/internal/sourcehost"
)

// fakeTree maps a repo-relative directory path to its listing.
type fakeTree map[string][]contentEntry

func newDiscoveryWorker(t *testing.T, tree fakeTree) *Worker {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widget/contents/", func(w http.ResponseWriter, r *http.Request) {
		const prefix = "/repos/acme/widget/contents/"
		dir := r.URL.Path[len(prefix):]
		entries, ok := tree[dir]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(entries)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	opts := sourcehost.DefaultOptions()
	opts.APIURL = srv.URL
	opts.RateLimitPerSec = 1000
	client := sourcehost.New(opts, testLogger())

	return &Worker{client: client, logger: testLogger(), consumerID: "test"}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(new(discardWriter), &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestDiscoverSkillFilesFindsRootAndSkillsDir(t *testing.T) {
	tree := fakeTree{
		"":        {{Name: "SKILL.md", Path: "SKILL.md", Type: "file"}, {Name: "skills", Path: "skills", Type: "dir"}},
		"skills":  {{Name: "pdf-fill", Path: "skills/pdf-fill", Type: "dir"}},
		"skills/pdf-fill": {{Name: "SKILL.md", Path: "skills/pdf-fill/SKILL.md", Type: "file"}},
	}
	w := newDiscoveryWorker(t, tree)

	got, err := w.discoverSkillFiles(context.Background(), "acme", "widget")
	if err != nil {
		t.Fatalf("discoverSkillFiles() error: %v", err)
	}

	want := map[string]bool{"SKILL.md": true, "skills/pdf-fill/SKILL.md": true}
	if len(got) != len(want) {
		t.Fatalf("got %v, want keys of %v", got, want)
	}
	for _, p := range got {
		if !want[p] {
			t.Errorf("unexpected candidate %q", p)
		}
	}
}

func TestDiscoverSkillFilesExcludesNestedDotFolders(t *testing.T) {
	tree := fakeTree{
		"":       {{Name: "skills", Path: "skills", Type: "dir"}},
		"skills": {{Name: ".hidden", Path: "skills/.hidden", Type: "dir"}},
		// skills/.hidden is never listed — the walk must not descend into it.
	}
	w := newDiscoveryWorker(t, tree)

	got, err := w.discoverSkillFiles(context.Background(), "acme", "widget")
	if err != nil {
		t.Fatalf("discoverSkillFiles() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want no candidates (dot folder must be excluded)", got)
	}
}

func TestDiscoverSkillFilesHonorsCuratedDotFolderRoot(t *testing.T) {
	tree := fakeTree{
		"":             {},
		".claude/skills": {{Name: "SKILL.md", Path: ".claude/skills/SKILL.md", Type: "file"}},
	}
	w := newDiscoveryWorker(t, tree)

	got, err := w.discoverSkillFiles(context.Background(), "acme", "widget")
	if err != nil {
		t.Fatalf("discoverSkillFiles() error: %v", err)
	}
	if len(got) != 1 || got[0] != ".claude/skills/SKILL.md" {
		t.Errorf("got %v, want [.claude/skills/SKILL.md]", got)
	}
}

func TestSkillDirOf(t *testing.T) {
	tests := []struct{ in, want string }{
		{"SKILL.md", ""},
		{"skills/pdf-fill/SKILL.md", "skills/pdf-fill"},
		{".claude/skills/SKILL.md", ".claude/skills"},
	}
	for _, tt := range tests {
		if got := skillDirOf(tt.in); got != tt.want {
			t.Errorf("skillDirOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
