package registryapi

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/skillnest/registry/internal/store"
)

func TestParseLimitOffsetDefaults(t *testing.T) {
	limit, offset, err := parseLimitOffset(url.Values{})
	if err != nil {
		t.Fatalf("parseLimitOffset: %v", err)
	}
	if limit != 25 || offset != 0 {
		t.Errorf("got limit=%d offset=%d, want 25/0", limit, offset)
	}
}

func TestParseLimitOffsetClampsMax(t *testing.T) {
	limit, _, err := parseLimitOffset(url.Values{"limit": {"500"}})
	if err != nil {
		t.Fatalf("parseLimitOffset: %v", err)
	}
	if limit != 100 {
		t.Errorf("limit = %d, want clamped to 100", limit)
	}
}

func TestParseLimitOffsetRejectsInvalid(t *testing.T) {
	if _, _, err := parseLimitOffset(url.Values{"limit": {"-1"}}); err == nil {
		t.Fatal("expected error for negative limit")
	}
	if _, _, err := parseLimitOffset(url.Values{"offset": {"-5"}}); err == nil {
		t.Fatal("expected error for negative offset")
	}
}

func TestToSkillSummary(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sk := store.Skill{
		Name:        "Widget Maker",
		Description: "Makes widgets",
		RepoOwner:   "acme",
		RepoName:    "widget",
		Stars:       42,
		UpdatedAt:   now,
		Visibility:  store.VisibilityPublic,
		Slug:        "acme-widget",
	}

	summary := toSkillSummary(sk, []string{"automation"})

	if summary.Owner != "acme" || summary.Repo != "widget" {
		t.Errorf("owner/repo = %s/%s, want acme/widget", summary.Owner, summary.Repo)
	}
	if summary.UpdatedAt != now.Format(time.RFC3339) {
		t.Errorf("UpdatedAt = %q, want RFC3339 formatted", summary.UpdatedAt)
	}
	if len(summary.Categories) != 1 || summary.Categories[0] != "automation" {
		t.Errorf("categories = %v, want [automation]", summary.Categories)
	}
	if summary.Visibility != "public" {
		t.Errorf("visibility = %q, want public", summary.Visibility)
	}
}

func TestRateLimitSubjectAnonymousUsesIP(t *testing.T) {
	req := &http.Request{RemoteAddr: "203.0.113.5:54321"}
	if got := rateLimitSubject(req); got != "ip:203.0.113.5" {
		t.Errorf("rateLimitSubject = %q, want ip:203.0.113.5", got)
	}
}

func TestRateLimitSubjectAuthenticatedUsesUserID(t *testing.T) {
	userID := uuid.New()
	accessor := store.Accessor{UserID: &userID}
	req := &http.Request{RemoteAddr: "203.0.113.5:54321"}
	req = req.WithContext(context.WithValue(req.Context(), accessorKey, accessor))

	want := "user:" + userID.String()
	if got := rateLimitSubject(req); got != want {
		t.Errorf("rateLimitSubject = %q, want %q", got, want)
	}
}
