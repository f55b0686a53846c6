package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/plumeblog/plume/internal/models"
)

// CreatePostRequest is the request body for creating a post.
type CreatePostRequest struct {
	Title    string `json:"title" example:"Channels in Go" validate:"required"`
	Content  string `json:"content" example:"Buffered and unbuffered..." validate:"required"`
	Category string `json:"category" example:"Go" validate:"required"`
	Status   string `json:"status,omitempty" example:"draft"`
	Excerpt  string `json:"excerpt,omitempty"`
}

// Validate checks the request fields.
func (r CreatePostRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required),
		validation.Field(&r.Content, validation.Required),
		validation.Field(&r.Category, validation.Required),
		validation.Field(&r.Status, validation.In("", models.StatusDraft, models.StatusPublished)),
	)
}

// UpdatePostRequest is the request body for editing a post. Omitted fields
// stay unchanged.
type UpdatePostRequest struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
	Status  *string `json:"status,omitempty"`
	Note    string  `json:"note,omitempty" example:"fixed typos"`
}

// Validate checks the request fields.
func (r UpdatePostRequest) Validate() error {
	if r.Status == nil {
		return nil
	}
	return validation.Validate(*r.Status,
		validation.In(models.StatusDraft, models.StatusPublished))
}

// CategoryRequest is the request body for creating or renaming a category.
type CategoryRequest struct {
	Name        string `json:"name" example:"Go" validate:"required"`
	Description string `json:"description,omitempty"`
}

// Validate checks the request fields.
func (r CategoryRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
	)
}

// PostListResponse wraps post listings.
type PostListResponse struct {
	Posts []models.Post `json:"posts" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results, best match first.
type SearchResponse struct {
	Results []models.Post `json:"results" validate:"required"`
}

// CategoryListResponse wraps category listings.
type CategoryListResponse struct {
	Categories []models.Category `json:"categories" validate:"required"`
}
