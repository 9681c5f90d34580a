package indexer

import (
	"strings"

	yaml "go.yaml.in/yaml/v2"
)

// frontmatter is the set of SKILL.md frontmatter fields the indexing worker
// understands. Unknown fields are ignored by yaml.v2's default behavior.
type frontmatter struct {
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	AllowedTools   []string `yaml:"allowed-tools"`
	Model          string   `yaml:"model"`
	Context        string   `yaml:"context"`
	Agent          string   `yaml:"agent"`
	Hooks          []string `yaml:"hooks"`
	UserInvocable  *bool    `yaml:"user-invocable"`
}

// parseFrontmatter extracts and decodes the YAML frontmatter block from a
// SKILL.md document: an opening "---" and closing "---", each alone on
// their own line. ok is false when no well-formed block is present.
func parseFrontmatter(content []byte) (fm frontmatter, ok bool) {
	lines := strings.Split(string(content), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return frontmatter{}, false
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end < 0 {
		return frontmatter{}, false
	}

	block := strings.Join(lines[1:end], "\n")
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return frontmatter{}, false
	}
	return fm, true
}

// isValid reports whether fm carries the two fields the spec requires.
func (fm frontmatter) isValid() bool {
	return strings.TrimSpace(fm.Name) != "" && strings.TrimSpace(fm.Description) != ""
}
