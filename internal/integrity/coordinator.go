// Package integrity keeps Category.PostCount and Post.Category mutually
// consistent across post creation, deletion, and category edits.
//
// With a remote store configured, mutations go through the store's atomic
// primitives and the change feed redelivers the authoritative state; the
// coordinator never writes the caches itself. In local-only mode the caches
// are the store, so the coordinator applies the equivalent mutations
// directly and lets the caches persist themselves.
package integrity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/plumeblog/plume/internal/apperr"
	"github.com/plumeblog/plume/internal/cache"
	"github.com/plumeblog/plume/internal/models"
	"github.com/plumeblog/plume/internal/remote"
)

// Coordinator enforces the category/post referential rules.
type Coordinator struct {
	store remote.Store // nil in local-only mode
	posts *cache.Cache[models.Post]
	cats  *cache.Cache[models.Category]
	now   func() time.Time
	newID func() string
}

// New creates a coordinator. Pass a nil store for local-only mode.
func New(store remote.Store, posts *cache.Cache[models.Post], cats *cache.Cache[models.Category]) *Coordinator {
	return &Coordinator{
		store: store,
		posts: posts,
		cats:  cats,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (c *Coordinator) local() bool { return c.store == nil }

// findCategory locates a category by normalized name in the local cache.
func (c *Coordinator) findCategory(name string) (models.Category, bool) {
	want := models.NormalizeName(name)
	for _, cat := range c.cats.All() {
		if models.NormalizeName(cat.Name) == want {
			return cat, true
		}
	}
	return models.Category{}, false
}

// CreatePost validates and stores a new post, creating its category
// implicitly when the name is unknown, otherwise incrementing the matching
// category's count. Validation happens before any I/O.
func (c *Coordinator) CreatePost(ctx context.Context, p models.Post) (models.Post, error) {
	p.Title = strings.TrimSpace(p.Title)
	p.Category = strings.TrimSpace(p.Category)
	if err := validateNewPost(p); err != nil {
		return models.Post{}, err
	}

	now := c.now()
	p.PublishedAt = now
	p.UpdatedAt = now
	p.Views = 0
	p.UpdateLogs = nil
	if p.Status == "" {
		p.Status = models.StatusDraft
	}
	if p.Excerpt == "" {
		p.Excerpt = models.MakeExcerpt(p.Content)
	}
	p.ReadTime = models.ComputeReadTime(p.Content)

	cat, exists := c.findCategory(p.Category)

	if c.local() {
		p.ID = c.newID()
		c.posts.Put(p)
		if exists {
			cat.PostCount++
			cat.PushRecent(p.Title)
			c.cats.Put(cat)
		} else {
			c.cats.Put(c.implicitCategory(p))
		}
		return p, nil
	}

	id, err := c.store.Add(ctx, "posts", remote.Document(p.Fields()))
	if err != nil {
		return models.Post{}, fmt.Errorf("integrity: create post: %w", err)
	}
	p.ID = id

	// The cache may not have heard of a category another create just made,
	// so create-or-increment is decided inside the transaction, never
	// against the cache.
	catID, catName := models.Slugify(p.Category), p.Category
	if exists {
		catID, catName = cat.ID, cat.Name
	}
	if err := c.recordPostInCategory(ctx, catID, catName, p.Title); err != nil {
		return models.Post{}, err
	}
	return p, nil
}

// recordPostInCategory atomically accounts a new post to its category: an
// absent category document is created with a count of one, an existing one
// is incremented and gets the title pushed onto its recent-posts projection.
func (c *Coordinator) recordPostInCategory(ctx context.Context, catID, name, title string) error {
	err := c.store.RunTransaction(ctx, "categories", []string{catID}, func(tx remote.Tx) error {
		doc, err := tx.Get(catID)
		if errors.Is(err, apperr.ErrNotFound) {
			cat := models.Category{ID: catID, Name: name, PostCount: 1}
			cat.PushRecent(title)
			tx.Update(catID, remote.Document(cat.Fields()))
			return nil
		}
		if err != nil {
			return err
		}
		cat := models.CategoryFromFields(catID, doc)
		cat.PostCount++
		cat.PushRecent(title)
		tx.Update(catID, remote.Document{
			"postCount":   cat.PostCount,
			"recentPosts": cat.Fields()["recentPosts"],
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("integrity: record post in category %s: %w", catID, err)
	}
	return nil
}

func (c *Coordinator) implicitCategory(p models.Post) models.Category {
	cat := models.Category{
		ID:        models.Slugify(p.Category),
		Name:      p.Category,
		PostCount: 1,
	}
	cat.PushRecent(p.Title)
	return cat
}

// DeletePost removes a post after checking that the requester is its
// author. Unauthorized attempts fail before any side effect. The owning
// category's count is decremented, floored at zero so that double-delete
// races can never drive it negative.
func (c *Coordinator) DeletePost(ctx context.Context, id, requesterID string) error {
	p, ok := c.posts.Get(id)
	if !ok {
		return fmt.Errorf("integrity: delete post %s: %w", id, apperr.ErrNotFound)
	}
	if requesterID == "" || requesterID != p.AuthorID {
		return fmt.Errorf("integrity: delete post %s: %w", id, apperr.ErrUnauthorized)
	}

	cat, haveCat := c.findCategory(p.Category)

	if c.local() {
		c.posts.Remove(id)
		if haveCat {
			if cat.PostCount--; cat.PostCount < 0 {
				cat.PostCount = 0
			}
			c.cats.Put(cat)
		}
		return nil
	}

	if err := c.store.Delete(ctx, "posts", id); err != nil {
		return fmt.Errorf("integrity: delete post %s: %w", id, err)
	}
	if haveCat {
		return c.decrementCount(ctx, cat.ID)
	}
	return nil
}

// RenameCategory updates a category's name and description. When the
// normalized name changes, every post referencing the old name is rewritten
// to the new one in the same all-or-nothing batch as the category update,
// so no reader ever observes a partial cascade.
func (c *Coordinator) RenameCategory(ctx context.Context, id, newName, description string) error {
	newName = strings.TrimSpace(newName)
	description = strings.TrimSpace(description)
	if newName == "" {
		return fmt.Errorf("%w: name is required", apperr.ErrValidation)
	}

	cat, ok := c.cats.Get(id)
	if !ok {
		return fmt.Errorf("integrity: rename category %s: %w", id, apperr.ErrNotFound)
	}

	oldNorm := models.NormalizeName(cat.Name)
	newNorm := models.NormalizeName(newName)
	if oldNorm != newNorm {
		if other, exists := c.findCategory(newName); exists && other.ID != id {
			return fmt.Errorf("integrity: rename category %s to %q: %w", id, newName, apperr.ErrDuplicateCategory)
		}
	}

	// The id stays what the original name derived; only the display name
	// changes.
	if c.local() {
		cat.Name = newName
		cat.Description = description
		c.cats.Put(cat)
		if oldNorm != newNorm {
			for _, p := range c.posts.All() {
				if models.NormalizeName(p.Category) == oldNorm {
					p.Category = newName
					c.posts.Put(p)
				}
			}
		}
		return nil
	}

	writes := []remote.Write{{
		Collection: "categories",
		ID:         id,
		Fields:     remote.Document{"name": newName, "description": description},
	}}
	if oldNorm != newNorm {
		for _, p := range c.posts.All() {
			if models.NormalizeName(p.Category) == oldNorm {
				writes = append(writes, remote.Write{
					Collection: "posts",
					ID:         p.ID,
					Fields:     remote.Document{"category": newName},
				})
			}
		}
	}
	if err := c.store.BatchWrite(ctx, writes); err != nil {
		return fmt.Errorf("integrity: rename category %s: %w", id, err)
	}
	return nil
}

// CreateCategory inserts an explicit category with zero posts. The
// uniqueness check runs against the local cache before any remote call, so
// duplicates fail fast.
func (c *Coordinator) CreateCategory(ctx context.Context, name, description string) (models.Category, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" {
		return models.Category{}, fmt.Errorf("%w: name is required", apperr.ErrValidation)
	}
	slug := models.Slugify(name)
	if slug == "" {
		return models.Category{}, fmt.Errorf("%w: name %q has no usable characters", apperr.ErrValidation, name)
	}

	for _, existing := range c.cats.All() {
		if existing.ID == slug || models.NormalizeName(existing.Name) == models.NormalizeName(name) {
			return models.Category{}, fmt.Errorf("integrity: create category %q: %w", name, apperr.ErrDuplicateCategory)
		}
	}

	cat := models.Category{ID: slug, Name: name, Description: description}

	if c.local() {
		c.cats.Put(cat)
		return cat, nil
	}
	if err := c.store.Put(ctx, "categories", slug, remote.Document(cat.Fields())); err != nil {
		return models.Category{}, fmt.Errorf("integrity: create category %q: %w", name, err)
	}
	return cat, nil
}

// decrementCount transactionally lowers a category's count, floored at zero.
// A category that vanished remotely leaves nothing to decrement.
func (c *Coordinator) decrementCount(ctx context.Context, catID string) error {
	err := c.store.RunTransaction(ctx, "categories", []string{catID}, func(tx remote.Tx) error {
		doc, err := tx.Get(catID)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		cat := models.CategoryFromFields(catID, doc)
		if cat.PostCount--; cat.PostCount < 0 {
			cat.PostCount = 0
		}
		tx.Update(catID, remote.Document{"postCount": cat.PostCount})
		return nil
	})
	if err != nil {
		return fmt.Errorf("integrity: adjust count for %s: %w", catID, err)
	}
	return nil
}

func validateNewPost(p models.Post) error {
	err := validation.Errors{
		"title":    validation.Validate(p.Title, validation.Required),
		"content":  validation.Validate(p.Content, validation.Required),
		"category": validation.Validate(p.Category, validation.Required),
	}.Filter()
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	return nil
}
