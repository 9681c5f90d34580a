package indexer

import "testing"

func TestParseFrontmatterValid(t *testing.T) {
	doc := []byte(`---
name: pdf-fill
description: Fills PDF forms from structured data.
allowed-tools:
  - bash
  - read
model: sonnet
---

# pdf-fill

Body content here.
`)

	fm, ok := parseFrontmatter(doc)
	if !ok {
		t.Fatal("parseFrontmatter() returned ok=false for a well-formed document")
	}
	if fm.Name != "pdf-fill" || fm.Description != "Fills PDF forms from structured data." {
		t.Errorf("parsed fields = %+v", fm)
	}
	if len(fm.AllowedTools) != 2 {
		t.Errorf("AllowedTools = %v, want 2 entries", fm.AllowedTools)
	}
	if !fm.isValid() {
		t.Error("isValid() = false, want true")
	}
}

func TestParseFrontmatterMissingClosingFence(t *testing.T) {
	doc := []byte("---\nname: foo\ndescription: bar\n")
	if _, ok := parseFrontmatter(doc); ok {
		t.Error("parseFrontmatter() = ok for a document missing its closing fence")
	}
}

func TestParseFrontmatterNoOpeningFence(t *testing.T) {
	doc := []byte("# just a heading\n\nno frontmatter here\n")
	if _, ok := parseFrontmatter(doc); ok {
		t.Error("parseFrontmatter() = ok for a document without frontmatter")
	}
}

func TestFrontmatterInvalidWhenFieldsEmpty(t *testing.T) {
	doc := []byte("---\nname: \"\"\ndescription: \"\"\n---\nbody\n")
	fm, ok := parseFrontmatter(doc)
	if !ok {
		t.Fatal("parseFrontmatter() returned ok=false, want true (well-formed but empty fields)")
	}
	if fm.isValid() {
		t.Error("isValid() = true for empty name/description")
	}
}
