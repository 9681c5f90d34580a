package skillid

import "testing"

func TestParseSourceForms(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Source
	}{
		{"shorthand", "acme/widget", Source{Host: "github.com", Owner: "acme", Repo: "widget"}},
		{"https", "https://github.com/acme/widget", Source{Host: "github.com", Owner: "acme", Repo: "widget"}},
		{"https with .git", "https://github.com/acme/widget.git", Source{Host: "github.com", Owner: "acme", Repo: "widget"}},
		{"ssh", "git@github.com:acme/widget.git", Source{Host: "github.com", Owner: "acme", Repo: "widget"}},
		{"custom host https", "https://git.example.com/acme/widget", Source{Host: "git.example.com", Owner: "acme", Repo: "widget"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSource(tt.input)
			if err != nil {
				t.Fatalf("ParseSource(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseSource(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseSourceRejectsGarbage(t *testing.T) {
	if _, err := ParseSource("not a source at all"); err == nil {
		t.Error("expected error for unrecognized coordinate")
	}
}

func TestParseFormatSourceRoundTrip(t *testing.T) {
	inputs := []string{
		"acme/widget",
		"https://github.com/acme/widget",
		"https://github.com/acme/widget.git",
		"git@github.com:acme/widget.git",
		"https://git.example.com/acme/widget",
	}

	for _, in := range inputs {
		src, err := ParseSource(in)
		if err != nil {
			t.Fatalf("ParseSource(%q) error: %v", in, err)
		}
		formatted := FormatSource(src)
		reparsed, err := ParseSource(formatted)
		if err != nil {
			t.Fatalf("ParseSource(FormatSource(%+v)) error: %v", src, err)
		}
		if reparsed != src {
			t.Errorf("round trip for %q: %+v -> %q -> %+v", in, src, formatted, reparsed)
		}
	}
}
