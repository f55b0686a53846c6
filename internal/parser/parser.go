// Package parser extracts post metadata from dropped Markdown files.
package parser

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"
)

// Result holds the parsed pieces of a Markdown drop.
type Result struct {
	Title    string
	Category string
	Status   string
	Excerpt  string
	Body     string
}

// frontmatter is the recognized YAML header of a drop file. Unknown keys
// are ignored.
type frontmatter struct {
	Title    string `yaml:"title"`
	Category string `yaml:"category"`
	Status   string `yaml:"status"`
	Excerpt  string `yaml:"excerpt"`
}

// Parse splits YAML frontmatter from the Markdown body and derives the post
// metadata. A missing or unparseable frontmatter block degrades to a plain
// body; the title then falls back to the first H1 heading.
func Parse(data []byte) (*Result, error) {
	fm, body := splitFrontmatter(data)

	res := &Result{
		Title:    strings.TrimSpace(fm.Title),
		Category: strings.TrimSpace(fm.Category),
		Status:   strings.TrimSpace(fm.Status),
		Excerpt:  strings.TrimSpace(fm.Excerpt),
		Body:     body,
	}
	if res.Title == "" {
		res.Title = firstHeading(body)
	}
	return res, nil
}

// splitFrontmatter separates YAML frontmatter (between leading ---
// delimiters) from the Markdown body. Without a complete, valid block the
// entire content is body.
func splitFrontmatter(data []byte) (frontmatter, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return frontmatter{}, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return frontmatter{}, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm frontmatter
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return frontmatter{}, string(data)
	}
	return fm, body
}

// firstHeading returns the first H1 heading of the body, or empty.
func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
