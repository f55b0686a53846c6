package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/plumeblog/plume/internal/apperr"
	"github.com/plumeblog/plume/internal/blog"
	"github.com/plumeblog/plume/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *blog.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *blog.Service) *Handler {
	return &Handler{svc: svc}
}

// writeError maps domain errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrUnauthorized):
		writeJSON(w, http.StatusForbidden, errorBody("forbidden"))
	case errors.Is(err, apperr.ErrDuplicateCategory):
		writeJSON(w, http.StatusConflict, errorBody("category already exists"))
	case errors.Is(err, apperr.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotReady):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("not ready"))
	default:
		slog.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListPosts handles GET /api/posts.
//
//	@Summary		List posts, newest first, optionally filtered by category
//	@Tags			posts
//	@Produce		json
//	@Param			category	query		string	false	"Category name (case-insensitive)"
//	@Success		200			{object}	PostListResponse
//	@Security		BearerAuth
//	@Router			/posts [get]
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	var posts []models.Post
	if category := r.URL.Query().Get("category"); category != "" {
		posts = h.svc.ByCategory(category)
	} else {
		posts = h.svc.All()
	}
	if posts == nil {
		posts = []models.Post{}
	}
	writeJSON(w, http.StatusOK, PostListResponse{Posts: posts, Total: len(posts)})
}

// GetPost handles GET /api/posts/{id}.
//
//	@Summary		Get a single post by id
//	@Tags			posts
//	@Produce		json
//	@Param			id	path		string	true	"Post id"
//	@Success		200	{object}	models.Post
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts/{id} [get]
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// CreatePost handles POST /api/posts.
//
//	@Summary		Create a post authored by the caller
//	@Tags			posts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreatePostRequest	true	"Post to create"
//	@Success		201		{object}	models.Post
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts [post]
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	user, _ := UserFrom(r.Context())
	post, err := h.svc.CreatePost(r.Context(), user.ID, models.Post{
		Title:    req.Title,
		Content:  req.Content,
		Category: req.Category,
		Status:   req.Status,
		Excerpt:  req.Excerpt,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// UpdatePost handles PUT /api/posts/{id}.
//
//	@Summary		Edit a post; every edit appends an update-log entry
//	@Tags			posts
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Post id"
//	@Param			body	body		UpdatePostRequest	true	"Fields to change"
//	@Success		200		{object}	models.Post
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts/{id} [put]
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req UpdatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	post, err := h.svc.UpdatePost(r.Context(), chi.URLParam(r, "id"), blog.PostUpdate{
		Title:   req.Title,
		Content: req.Content,
		Status:  req.Status,
		Note:    req.Note,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// DeletePost handles DELETE /api/posts/{id}.
//
//	@Summary		Delete a post; only its author may
//	@Tags			posts
//	@Param			id	path	string	true	"Post id"
//	@Success		204	"Post deleted"
//	@Failure		403	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts/{id} [delete]
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	if err := h.svc.DeletePost(r.Context(), chi.URLParam(r, "id"), user.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// IncrementViews handles POST /api/posts/{id}/views.
//
//	@Summary		Record one view of a post
//	@Tags			posts
//	@Param			id	path	string	true	"Post id"
//	@Success		204	"View recorded"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts/{id}/views [post]
func (h *Handler) IncrementViews(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.IncrementViews(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Fuzzy search posts by title and excerpt
//	@Tags			search
//	@Produce		json
//	@Param			q	query		string	true	"Search query"
//	@Success		200	{object}	SearchResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	results := h.svc.Search(q)
	if results == nil {
		results = []models.Post{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// ListCategories handles GET /api/categories.
//
//	@Summary		List categories in name order
//	@Tags			categories
//	@Produce		json
//	@Success		200	{object}	CategoryListResponse
//	@Security		BearerAuth
//	@Router			/categories [get]
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats := h.svc.Categories()
	if cats == nil {
		cats = []models.Category{}
	}
	writeJSON(w, http.StatusOK, CategoryListResponse{Categories: cats})
}

// CreateCategory handles POST /api/categories.
//
//	@Summary		Create an empty category
//	@Tags			categories
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CategoryRequest	true	"Category to create"
//	@Success		201		{object}	models.Category
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/categories [post]
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	cat, err := h.svc.CreateCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

// UpdateCategory handles PUT /api/categories/{id}.
//
//	@Summary		Rename a category, cascading to its posts
//	@Tags			categories
//	@Accept			json
//	@Param			id		path	string			true	"Category id"
//	@Param			body	body	CategoryRequest	true	"New name and description"
//	@Success		204		"Category updated"
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/categories/{id} [put]
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err := h.svc.UpdateCategory(r.Context(), chi.URLParam(r, "id"), req.Name, req.Description); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
