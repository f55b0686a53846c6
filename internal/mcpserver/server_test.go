package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/plumeblog/plume/internal/blog"
	"github.com/plumeblog/plume/internal/models"
	"github.com/plumeblog/plume/internal/testutil"
)

func testServer(t *testing.T) (*Server, *blog.Service) {
	t.Helper()
	svc, _ := testutil.LocalService(t, testutil.TempStore(t))
	return New(svc), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handler
	// functions are invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_posts":
		result, err = srv.searchPosts(ctx, req)
	case "get_post":
		result, err = srv.getPost(ctx, req)
	case "list_posts":
		result, err = srv.listPosts(ctx, req)
	case "list_categories":
		result, err = srv.listCategories(ctx, req)
	case "create_post":
		result, err = srv.createPost(ctx, req)
	case "get_post_contract":
		result, err = srv.getPostContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndGetPost(t *testing.T) {
	srv, svc := testServer(t)

	r := callTool(t, srv, "create_post", map[string]interface{}{
		"title":    "Channels in Go",
		"content":  "# Channels\nBuffered and unbuffered.",
		"category": "Go",
	})
	text := resultText(r)
	if !strings.HasPrefix(text, "created: ") {
		t.Fatalf("create result = %q", text)
	}
	id := strings.TrimPrefix(text, "created: ")

	r = callTool(t, srv, "get_post", map[string]interface{}{"id": id})
	text = resultText(r)
	if !strings.Contains(text, "Channels in Go") || !strings.Contains(text, `"authorId": "mcp"`) {
		t.Errorf("get result = %q", text)
	}

	if p, err := svc.Get(id); err != nil || p.Status != models.StatusDraft {
		t.Errorf("post = %+v, %v", p, err)
	}
}

func TestCreatePostMissingCategory(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_post", map[string]interface{}{
		"title":   "t",
		"content": "c",
	})
	if !r.IsError {
		t.Error("expected error for missing category")
	}
}

func TestListPostsAndCategories(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_post", map[string]interface{}{
		"title": "One", "content": "c", "category": "Go",
	})
	_ = callTool(t, srv, "create_post", map[string]interface{}{
		"title": "Two", "content": "c", "category": "Baking",
	})

	text := resultText(callTool(t, srv, "list_posts", map[string]interface{}{}))
	if !strings.Contains(text, "One") || !strings.Contains(text, "Two") {
		t.Errorf("list = %q", text)
	}

	text = resultText(callTool(t, srv, "list_posts", map[string]interface{}{"category": "go"}))
	if !strings.Contains(text, "One") || strings.Contains(text, "Two") {
		t.Errorf("filtered list = %q", text)
	}

	text = resultText(callTool(t, srv, "list_categories", map[string]interface{}{}))
	if !strings.Contains(text, "Go") || !strings.Contains(text, "(1 posts)") {
		t.Errorf("categories = %q", text)
	}
}

func TestSearchPosts(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_post", map[string]interface{}{
		"title": "Concurrency patterns", "content": "goroutines everywhere", "category": "Go",
	})

	text := resultText(callTool(t, srv, "search_posts", map[string]interface{}{"query": "concurency"}))
	if !strings.Contains(text, "Concurrency patterns") {
		t.Errorf("search = %q", text)
	}
}

func TestGetPostMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_post", map[string]interface{}{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing post")
	}
}

func TestGetPostContract(t *testing.T) {
	srv, _ := testServer(t)
	text := resultText(callTool(t, srv, "get_post_contract", map[string]interface{}{}))
	if !strings.Contains(text, "Post Format Contract") {
		t.Errorf("contract = %q", text)
	}
}
