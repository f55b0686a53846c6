// Package models defines the domain types for Plume.
package models

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Post status values.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Post is a blog article as held in the local cache. The authoritative copy
// lives in the remote store when one is configured.
type Post struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Content      string      `json:"content"`
	Excerpt      string      `json:"excerpt"`
	Category     string      `json:"category"`
	Status       string      `json:"status"`
	Views        int         `json:"views"`
	ReadTime     string      `json:"readTime"`
	UpdateLogs   []UpdateLog `json:"updateLogs"`
	PublishedAt  time.Time   `json:"publishedAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
	LastViewedAt int64       `json:"lastViewedAt,omitempty"`
	AuthorID     string      `json:"authorId,omitempty"`
}

// UpdateLog records one edit of a post. Entries are append-only: once written
// they are never mutated, only followed by newer entries.
type UpdateLog struct {
	ID      string   `json:"id"`
	Date    string   `json:"date"`
	Version string   `json:"version"`
	Changes []string `json:"changes"`
	Note    string   `json:"note,omitempty"`
}

var nonSlugRe = regexp.MustCompile(`[^a-z0-9-]`)

// Slugify derives a category id from its name: lowercase, whitespace to
// hyphens, everything outside [a-z0-9-] stripped. The id is computed once at
// creation time and never changes, even if the name is later edited.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Join(strings.Fields(s), "-")
	return nonSlugRe.ReplaceAllString(s, "")
}

// NormalizeName lowercases and trims a category name for comparison. The
// stored name keeps the caller's casing.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

const wordsPerMinute = 200

// ComputeReadTime estimates reading time from the content word count.
func ComputeReadTime(content string) string {
	words := len(strings.Fields(content))
	minutes := int(math.Ceil(float64(words) / wordsPerMinute))
	if minutes < 1 {
		minutes = 1
	}
	if minutes == 1 {
		return "1 min read"
	}
	return strconv.Itoa(minutes) + " min read"
}

const excerptLimit = 150

var markupRe = regexp.MustCompile("[#*`\n]")

// MakeExcerpt strips basic Markdown markup and truncates to the excerpt
// limit. The limit counts runes, not bytes, so multibyte text is never cut
// mid-character.
func MakeExcerpt(content string) string {
	plain := strings.TrimSpace(markupRe.ReplaceAllString(content, " "))
	plain = strings.Join(strings.Fields(plain), " ")
	runes := []rune(plain)
	if len(runes) <= excerptLimit {
		return plain
	}
	return string(runes[:excerptLimit]) + "..."
}
