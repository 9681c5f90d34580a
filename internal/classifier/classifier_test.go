package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCountKeywordHits(t *testing.T) {
	haystack := "a tool that scrapes html pages with a headless browser and a crawler"
	got := countKeywordHits(haystack, []string{"browser", "scrape", "crawler", "selenium"})
	if got != 3 {
		t.Errorf("countKeywordHits() = %d, want 3 (browser, scrape as substring of scrapes, crawler)", got)
	}
}

func TestIsPredefinedSlug(t *testing.T) {
	if !isPredefinedSlug("devops") {
		t.Error("isPredefinedSlug(\"devops\") = false, want true")
	}
	if isPredefinedSlug("totally-new-thing") {
		t.Error("isPredefinedSlug(\"totally-new-thing\") = true, want false")
	}
}

func TestRankAndTruncate(t *testing.T) {
	byslug := map[string]*scored{
		"a": {slug: "a", score: 1},
		"b": {slug: "b", score: 5},
		"c": {slug: "c", score: 3},
		"d": {slug: "d", score: 2},
		"e": {slug: "e", score: 4},
		"f": {slug: "f", score: 0.5},
	}
	got := rankAndTruncate(byslug, 5)
	want := []string{"b", "e", "c", "d", "a"}
	if len(got) != len(want) {
		t.Fatalf("rankAndTruncate() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("rankAndTruncate()[%d] = %q, want %q (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestRankAndTruncateEmpty(t *testing.T) {
	got := rankAndTruncate(map[string]*scored{}, 5)
	if len(got) != 0 {
		t.Errorf("rankAndTruncate(empty) = %v, want empty", got)
	}
}

func TestSuggestionProviderNilWhenNoURL(t *testing.T) {
	if p := NewSuggestionProvider("", "key"); p != nil {
		t.Errorf("NewSuggestionProvider(\"\", ...) = %v, want nil", p)
	}
}

func TestSuggestionProviderSuggest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "test-key" {
			t.Errorf("missing API key header")
		}
		var req suggestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Name != "pdf-fill" {
			t.Errorf("request Name = %q, want pdf-fill", req.Name)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(suggestResponse{
			Categories: []Suggestion{
				{Slug: "document-processing", Score: 0.9},
				{Slug: "forms-wizardry", Name: "Forms Wizardry", Score: 0.6},
			},
		})
	}))
	defer srv.Close()

	p := NewSuggestionProvider(srv.URL, "test-key")
	got, err := p.Suggest(context.Background(), "pdf-fill", "Fills PDF forms.", "some content")
	if err != nil {
		t.Fatalf("Suggest() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Suggest() = %v, want 2 entries", got)
	}
}

func TestSuggestionProviderNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewSuggestionProvider(srv.URL, "key")
	if _, err := p.Suggest(context.Background(), "n", "d", "c"); err == nil {
		t.Error("Suggest() error = nil, want error on HTTP 500")
	}
}
