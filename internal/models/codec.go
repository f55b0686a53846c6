package models

import "time"

// The remote store holds schemaless documents (field name → value). These
// helpers convert between the typed domain structs and that shape. Values
// written here must survive a decode by the matching FromFields function.

// Fields flattens the post into a schemaless document, without the id.
func (p Post) Fields() map[string]any {
	logs := make([]any, 0, len(p.UpdateLogs))
	for _, l := range p.UpdateLogs {
		logs = append(logs, map[string]any{
			"id":      l.ID,
			"date":    l.Date,
			"version": l.Version,
			"changes": toAnySlice(l.Changes),
			"note":    l.Note,
		})
	}
	return map[string]any{
		"title":        p.Title,
		"content":      p.Content,
		"excerpt":      p.Excerpt,
		"category":     p.Category,
		"status":       p.Status,
		"views":        p.Views,
		"readTime":     p.ReadTime,
		"updateLogs":   logs,
		"publishedAt":  p.PublishedAt,
		"updatedAt":    p.UpdatedAt,
		"lastViewedAt": p.LastViewedAt,
		"authorId":     p.AuthorID,
	}
}

// PostFromFields rebuilds a post from a schemaless document. Unknown or
// malformed fields decode to zero values; the id is carried separately
// because the store assigns it.
func PostFromFields(id string, f map[string]any) Post {
	p := Post{
		ID:           id,
		Title:        fieldString(f, "title"),
		Content:      fieldString(f, "content"),
		Excerpt:      fieldString(f, "excerpt"),
		Category:     fieldString(f, "category"),
		Status:       fieldString(f, "status"),
		Views:        fieldInt(f, "views"),
		ReadTime:     fieldString(f, "readTime"),
		PublishedAt:  fieldTime(f, "publishedAt"),
		UpdatedAt:    fieldTime(f, "updatedAt"),
		LastViewedAt: fieldInt64(f, "lastViewedAt"),
		AuthorID:     fieldString(f, "authorId"),
	}
	if raw, ok := f["updateLogs"].([]any); ok {
		for _, item := range raw {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			p.UpdateLogs = append(p.UpdateLogs, UpdateLog{
				ID:      fieldString(m, "id"),
				Date:    fieldString(m, "date"),
				Version: fieldString(m, "version"),
				Changes: toStringSlice(m["changes"]),
				Note:    fieldString(m, "note"),
			})
		}
	}
	return p
}

// Fields flattens the category into a schemaless document, without the id.
func (c Category) Fields() map[string]any {
	return map[string]any{
		"name":        c.Name,
		"description": c.Description,
		"postCount":   c.PostCount,
		"recentPosts": toAnySlice(c.RecentPosts),
	}
}

// CategoryFromFields rebuilds a category from a schemaless document.
func CategoryFromFields(id string, f map[string]any) Category {
	return Category{
		ID:          id,
		Name:        fieldString(f, "name"),
		Description: fieldString(f, "description"),
		PostCount:   fieldInt(f, "postCount"),
		RecentPosts: toStringSlice(f["recentPosts"]),
	}
}

func fieldString(f map[string]any, key string) string {
	s, _ := f[key].(string)
	return s
}

func fieldInt(f map[string]any, key string) int {
	switch v := f[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func fieldInt64(f map[string]any, key string) int64 {
	switch v := f[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func fieldTime(f map[string]any, key string) time.Time {
	switch v := f[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func toStringSlice(raw any) []string {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
