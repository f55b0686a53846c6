package mcpserver

// PostFormatContract describes the canonical post structure that LLM
// consumers should follow when creating posts.
const PostFormatContract = `# Plume Post Format Contract

Every post created through Plume tools MUST follow this structure.

## Fields

- **title** (required) — human-readable title; used in search and listings.
- **content** (required) — standard Markdown body. The excerpt (first 150
  characters, markup stripped) and the read time (200 words per minute)
  are derived from it automatically; do not supply them.
- **category** (required) — free-form category name. Casing is preserved
  for display but compared case-insensitively: "Go" and "go" are the same
  category. An unknown name creates the category implicitly.
- **status** (optional) — ` + "`draft`" + ` (default) or ` + "`published`" + `.

## Rules

1. **Titles are plain text.** No Markdown markup in the title field.
2. **Categories are reused, not invented.** Call ` + "`list_categories`" + ` first
   and prefer an existing name over a near-duplicate.
3. **Content is UTF-8 Markdown** with a trailing newline. No HTML unless
   absolutely necessary.
4. **View counts and update history are server-managed.** New posts start
   at zero views with an empty update log.

## Drop-file equivalent

Posts can also arrive as Markdown files in the import directory:

` + "```" + `markdown
---
title: Channels in Go
category: Go
status: published
---

Body text in standard Markdown.
` + "```" + `

A missing title falls back to the first H1 heading, then to the filename.

## Example

` + "```" + `json
{
  "title": "Channels in Go",
  "content": "# Channels in Go\n\nBuffered and unbuffered channels...\n",
  "category": "Go",
  "status": "draft"
}
` + "```" + `
`
