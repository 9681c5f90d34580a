// Package skillid implements the two coordinate encodings the registry
// treats as round-trip laws: slug <-> (owner, name) and source coordinate
// <-> its shorthand/URL/SSH text forms.
package skillid

import (
	"fmt"
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Normalize lowercases s and collapses runs of non-alphanumeric characters
// to a single hyphen, trimming leading/trailing hyphens. This is the
// formatting step applied to each slug component before joining.
func Normalize(s string) string {
	lower := strings.ToLower(s)
	collapsed := nonAlphanumeric.ReplaceAllString(lower, "-")
	return strings.Trim(collapsed, "-")
}

// escapeHyphens doubles every literal hyphen in a normalized component so
// the component separator (a single hyphen) stays unambiguous.
func escapeHyphens(s string) string {
	return strings.ReplaceAll(s, "-", "--")
}

func unescapeHyphens(s string) string {
	return strings.ReplaceAll(s, "--", "-")
}

// FormatSlug builds the canonical slug for a skill identity. Each component
// is normalized and hyphen-escaped before being joined by a single hyphen,
// so a hyphen run inside owner or name can never be mistaken for the
// component separator.
func FormatSlug(owner, name string) string {
	return escapeHyphens(Normalize(owner)) + "-" + escapeHyphens(Normalize(name))
}

// ParseSlug recovers (owner, name) from a slug built by FormatSlug. It finds
// the first single (non-doubled) hyphen and splits there.
func ParseSlug(slug string) (owner, name string, err error) {
	idx := findSeparator(slug)
	if idx < 0 {
		return "", "", fmt.Errorf("slug %q has no unescaped component separator", slug)
	}
	owner = unescapeHyphens(slug[:idx])
	name = unescapeHyphens(slug[idx+1:])
	if owner == "" || name == "" {
		return "", "", fmt.Errorf("slug %q decodes to an empty component", slug)
	}
	return owner, name, nil
}

// findSeparator returns the index of the first hyphen that is not part of a
// doubled (escaped) pair, or -1 if none exists.
func findSeparator(s string) int {
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '-' {
			continue
		}
		if i+1 < len(runes) && runes[i+1] == '-' {
			i++ // skip the escaped pair
			continue
		}
		return i
	}
	return -1
}

// FormatSkillSlug builds the slug for a skill that also carries a
// displayName or sub-path, per spec.md's "{owner}-{repo}-{displayName|path}" form.
func FormatSkillSlug(owner, repo, displayNameOrPath string) string {
	base := FormatSlug(owner, repo)
	if displayNameOrPath == "" {
		return base
	}
	return base + "-" + escapeHyphens(Normalize(displayNameOrPath))
}

// Disambiguate appends a numeric suffix to slug to resolve a collision
// between two distinct repository identities, per the open disambiguation
// rule: the invariant is global uniqueness, not a specific suffix scheme.
// exists is called with candidate slugs until one returns false.
func Disambiguate(slug string, exists func(candidate string) bool) string {
	if !exists(slug) {
		return slug
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", slug, n)
		if !exists(candidate) {
			return candidate
		}
	}
}
