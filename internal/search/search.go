// Package search provides fuzzy full-text matching over the cached posts.
//
// The index is rebuilt from the full cache contents on every call, which is
// fine at a single author's scale. buildSources is kept separate from the
// ranking step so it can later be memoized keyed on the cache version if the
// data volume grows.
package search

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/plumeblog/plume/internal/models"
)

// DefaultMinQueryLen is the query length below which matching does not
// engage at all.
const DefaultMinQueryLen = 2

// titleWeight favours title hits over excerpt hits in the combined score.
const titleWeight = 2

// Index configures fuzzy matching. The zero value excludes negatively
// scored (very sloppy) matches and requires queries of at least
// DefaultMinQueryLen characters.
type Index struct {
	// Threshold is the minimum combined score a candidate must reach.
	Threshold int
	// MinQueryLen overrides DefaultMinQueryLen when positive.
	MinQueryLen int
}

// fieldSource adapts one projected post field to the fuzzy matcher.
type fieldSource []string

func (s fieldSource) String(i int) string { return s[i] }
func (s fieldSource) Len() int            { return len(s) }

// buildSources projects the searchable fields out of the posts.
func buildSources(posts []models.Post) (titles, excerpts fieldSource) {
	titles = make(fieldSource, len(posts))
	excerpts = make(fieldSource, len(posts))
	for i, p := range posts {
		titles[i] = p.Title
		excerpts[i] = p.Excerpt
	}
	return titles, excerpts
}

// Search ranks posts against query, best match first. Empty or
// whitespace-only queries and queries shorter than the minimum length
// return no results. Ordering among equally scored results is unspecified.
func (ix Index) Search(posts []models.Post, query string) []models.Post {
	query = strings.TrimSpace(query)
	minLen := ix.MinQueryLen
	if minLen <= 0 {
		minLen = DefaultMinQueryLen
	}
	if len(query) < minLen {
		return nil
	}

	titles, excerpts := buildSources(posts)

	scores := make(map[int]int)
	for _, m := range fuzzy.FindFrom(query, titles) {
		scores[m.Index] += m.Score * titleWeight
	}
	for _, m := range fuzzy.FindFrom(query, excerpts) {
		scores[m.Index] += m.Score
	}

	hits := make([]int, 0, len(scores))
	for i, score := range scores {
		if score < ix.Threshold {
			continue
		}
		hits = append(hits, i)
	}
	sort.Slice(hits, func(a, b int) bool {
		return scores[hits[a]] > scores[hits[b]]
	})

	out := make([]models.Post, len(hits))
	for i, idx := range hits {
		out[i] = posts[idx]
	}
	return out
}
