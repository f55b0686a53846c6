// Package views implements race-free view-count increments.
package views

import (
	"context"
	"fmt"
	"time"

	"github.com/plumeblog/plume/internal/apperr"
	"github.com/plumeblog/plume/internal/cache"
	"github.com/plumeblog/plume/internal/models"
	"github.com/plumeblog/plume/internal/remote"
)

// Counter increments per-post view counts. With a remote store the
// increment is an atomic read-modify-write inside a store transaction,
// because concurrent viewers race on the same counter and a blind
// "current+1" write loses updates. In local-only mode there is a single
// writer, so a plain cache update suffices.
type Counter struct {
	store remote.Store // nil in local-only mode
	posts *cache.Cache[models.Post]
	now   func() time.Time
}

// New creates a counter. Pass a nil store for local-only mode.
func New(store remote.Store, posts *cache.Cache[models.Post]) *Counter {
	return &Counter{store: store, posts: posts, now: time.Now}
}

// Increment bumps the post's view count by one and stamps the last-viewed
// time. Counts never decrease outside administrative resets.
func (c *Counter) Increment(ctx context.Context, id string) error {
	if c.store == nil {
		p, ok := c.posts.Get(id)
		if !ok {
			return fmt.Errorf("views: increment %s: %w", id, apperr.ErrNotFound)
		}
		p.Views++
		p.LastViewedAt = c.now().UnixMilli()
		c.posts.Put(p)
		return nil
	}

	err := c.store.RunTransaction(ctx, "posts", []string{id}, func(tx remote.Tx) error {
		doc, err := tx.Get(id)
		if err != nil {
			return err
		}
		p := models.PostFromFields(id, doc)
		tx.Update(id, remote.Document{
			"views":        p.Views + 1,
			"lastViewedAt": c.now().UnixMilli(),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("views: increment %s: %w", id, err)
	}
	return nil
}
