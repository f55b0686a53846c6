package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/plumeblog/plume/internal/auth"
	"github.com/plumeblog/plume/internal/blog"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced; in disabled
// mode every request runs as fallback. sseHandler, if non-nil, is mounted
// at GET /events inside the auth group.
func NewRouter(svc *blog.Service, registry *auth.Registry, authEnabled bool, fallback auth.User, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, registry, fallback))

	// Posts CRUD.
	r.Get("/posts", h.ListPosts)
	r.Post("/posts", h.CreatePost)
	r.Get("/posts/{id}", h.GetPost)
	r.Put("/posts/{id}", h.UpdatePost)
	r.Delete("/posts/{id}", h.DeletePost)
	r.Post("/posts/{id}/views", h.IncrementViews)

	// Search.
	r.Get("/search", h.Search)

	// Categories.
	r.Get("/categories", h.ListCategories)
	r.Post("/categories", h.CreateCategory)
	r.Put("/categories/{id}", h.UpdateCategory)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
