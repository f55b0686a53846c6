package parser

import (
	"testing"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\ncategory: Go\nstatus: published\nexcerpt: A greeting.\n---\n# Hello\nBody text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if r.Category != "Go" {
		t.Errorf("category = %q, want %q", r.Category, "Go")
	}
	if r.Status != "published" {
		t.Errorf("status = %q", r.Status)
	}
	if r.Excerpt != "A greeting." {
		t.Errorf("excerpt = %q", r.Excerpt)
	}
	if r.Body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	input := []byte("# Just a heading\nSome text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Category != "" || r.Status != "" {
		t.Errorf("expected empty metadata, got %+v", r)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	input := []byte("---\n: invalid: yaml: {{{\n---\nBody\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Invalid YAML falls back to treating everything as body.
	if r.Category != "" {
		t.Errorf("expected no metadata on invalid YAML")
	}
	if r.Body != string(input) {
		t.Errorf("body = %q, want full input", r.Body)
	}
}

func TestParse_UnclosedFrontmatter(t *testing.T) {
	input := []byte("---\ntitle: Dangling\nno closing delimiter")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Body != string(input) {
		t.Errorf("body = %q, want full input", r.Body)
	}
}

func TestParse_TitleFallsBackToH1(t *testing.T) {
	input := []byte("---\ncategory: Go\n---\nintro line\n# My Heading\nmore")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "My Heading" {
		t.Errorf("title = %q, want %q", r.Title, "My Heading")
	}
	if r.Category != "Go" {
		t.Errorf("category = %q", r.Category)
	}
}
