package skillid

import "testing"

func TestFormatParseSlugRoundTrip(t *testing.T) {
	tests := []struct {
		owner, name string
	}{
		{"acme", "widget"},
		{"my-org", "my-repo"},
		{"a", "b"},
		{"multi-part-owner", "multi-part-name"},
	}

	for _, tt := range tests {
		slug := FormatSlug(tt.owner, tt.name)
		gotOwner, gotName, err := ParseSlug(slug)
		if err != nil {
			t.Fatalf("ParseSlug(%q) error: %v", slug, err)
		}
		if gotOwner != tt.owner || gotName != tt.name {
			t.Errorf("round trip (%q, %q) -> %q -> (%q, %q)", tt.owner, tt.name, slug, gotOwner, gotName)
		}
	}
}

func TestNormalizeCollapsesNonAlphanumeric(t *testing.T) {
	if got := Normalize("Foo_Bar Baz!!"); got != "foo-bar-baz" {
		t.Errorf("Normalize() = %q, want %q", got, "foo-bar-baz")
	}
}

func TestFormatSkillSlugWithPath(t *testing.T) {
	slug := FormatSkillSlug("acme", "widget", "foo")
	if slug != "acme-widget-foo" {
		t.Errorf("FormatSkillSlug() = %q, want %q", slug, "acme-widget-foo")
	}
}

func TestFormatSkillSlugNoPath(t *testing.T) {
	slug := FormatSkillSlug("acme", "widget", "")
	if slug != "acme-widget" {
		t.Errorf("FormatSkillSlug() = %q, want %q", slug, "acme-widget")
	}
}

func TestDisambiguate(t *testing.T) {
	taken := map[string]bool{"acme-widget": true, "acme-widget-2": true}
	exists := func(candidate string) bool { return taken[candidate] }

	got := Disambiguate("acme-widget", exists)
	if got != "acme-widget-3" {
		t.Errorf("Disambiguate() = %q, want %q", got, "acme-widget-3")
	}
}

func TestDisambiguateNoCollision(t *testing.T) {
	got := Disambiguate("acme-widget", func(string) bool { return false })
	if got != "acme-widget" {
		t.Errorf("Disambiguate() = %q, want unchanged slug", got)
	}
}
