// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Plume tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/plumeblog/plume/internal/blog"
	"github.com/plumeblog/plume/internal/models"
)

// authorID identifies posts created through MCP tools.
const authorID = "mcp"

// Server wraps the MCP server with Plume tools.
type Server struct {
	mcp *server.MCPServer
	svc *blog.Service
}

// New creates a new MCP server with all Plume tools registered.
func New(svc *blog.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Plume",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_posts",
		mcp.WithDescription("Fuzzy search through post titles and excerpts."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchPosts)

	s.mcp.AddTool(mcp.NewTool("get_post",
		mcp.WithDescription("Read the full content and metadata of a post."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Post id")),
	), s.getPost)

	s.mcp.AddTool(mcp.NewTool("list_posts",
		mcp.WithDescription("List posts newest first, optionally filtered by category."),
		mcp.WithString("category", mcp.Description("Optional category name (case-insensitive)")),
	), s.listPosts)

	s.mcp.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List categories with their post counts."),
	), s.listCategories)

	s.mcp.AddTool(mcp.NewTool("create_post",
		mcp.WithDescription("Create a new blog post. Content is Markdown; the excerpt "+
			"and read time are derived automatically. Read the contract first via "+
			"the get_post_contract tool or the plume://post-format resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Post title")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown body")),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category name; created implicitly when new")),
		mcp.WithString("status", mcp.Description("draft (default) or published")),
	), s.createPost)

	s.mcp.AddTool(mcp.NewTool("get_post_contract",
		mcp.WithDescription("Returns the canonical Plume post format contract. "+
			"Call this before creating posts to ensure correct structure."),
	), s.getPostContract)

	// Resource: post format contract.
	s.mcp.AddResource(
		mcp.NewResource("plume://post-format", "Post Format Contract",
			mcp.WithResourceDescription("Canonical post structure that all created posts must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPostFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchPosts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results := s.svc.Search(query)
	items := make([]map[string]string, len(results))
	for i, p := range results {
		items[i] = map[string]string{
			"id":       p.ID,
			"title":    p.Title,
			"excerpt":  p.Excerpt,
			"category": p.Category,
		}
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.Get(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(p, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listPosts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var posts []models.Post
	if category, err := req.RequireString("category"); err == nil && category != "" {
		posts = s.svc.ByCategory(category)
	} else {
		posts = s.svc.All()
	}

	var lines []string
	for _, p := range posts {
		lines = append(lines, fmt.Sprintf("%s\t%s\t[%s]\t%s", p.ID, p.Title, p.Category, p.Status))
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no posts"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) listCategories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var lines []string
	for _, c := range s.svc.Categories() {
		lines = append(lines, fmt.Sprintf("%s\t%s\t(%d posts)", c.ID, c.Name, c.PostCount))
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no categories"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) createPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status := ""
	if v, err := req.RequireString("status"); err == nil {
		status = v
	}

	created, err := s.svc.CreatePost(ctx, authorID, models.Post{
		Title:    title,
		Content:  content,
		Category: category,
		Status:   status,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", created.ID)), nil
}

func (s *Server) getPostContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PostFormatContract), nil
}

func (s *Server) readPostFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "plume://post-format",
			MIMEType: "text/markdown",
			Text:     PostFormatContract,
		},
	}, nil
}
