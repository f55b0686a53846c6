// Package feed adapts the remote store's raw subscriptions into typed
// change feeds for the posts and categories collections.
package feed

import (
	"context"

	"github.com/plumeblog/plume/internal/models"
	"github.com/plumeblog/plume/internal/remote"
)

// Snapshot is a typed full-collection materialization.
type Snapshot[T any] struct {
	Seq   uint64
	Items []T
}

// Feed delivers typed snapshots in increasing Seq order. Like the raw
// subscription it wraps, the channel is closed on termination and Err
// reports the terminal error; the consumer must resubscribe explicitly.
type Feed[T any] struct {
	sub *remote.Subscription
	ch  chan Snapshot[T]
}

// C returns the typed snapshot channel.
func (f *Feed[T]) C() <-chan Snapshot[T] { return f.ch }

// Err returns the terminal error of the underlying subscription.
func (f *Feed[T]) Err() error { return f.sub.Err() }

// Close stops the feed and the underlying subscription.
func (f *Feed[T]) Close() { f.sub.Close() }

// pump decodes raw snapshots until the subscription terminates, coalescing
// for slow consumers the same way the subscription does.
func (f *Feed[T]) pump(decode func(id string, doc remote.Document) T) {
	for raw := range f.sub.C() {
		items := make([]T, len(raw.Docs))
		for i, doc := range raw.Docs {
			items[i] = decode(raw.IDs[i], doc)
		}
		f.send(Snapshot[T]{Seq: raw.Seq, Items: items})
	}
	close(f.ch)
}

func (f *Feed[T]) send(snap Snapshot[T]) {
	select {
	case f.ch <- snap:
		return
	default:
	}
	// Replace the stale pending snapshot; capacity is 1 and pump is the
	// only sender, so the second send cannot block.
	select {
	case <-f.ch:
	default:
	}
	f.ch <- snap
}

// Adapter opens typed feeds over the remote store.
type Adapter struct {
	store remote.Store
}

// NewAdapter creates a feed adapter.
func NewAdapter(store remote.Store) *Adapter {
	return &Adapter{store: store}
}

// Posts subscribes to the posts collection, newest first.
func (a *Adapter) Posts(ctx context.Context) (*Feed[models.Post], error) {
	sub, err := a.store.Subscribe(ctx, "posts", "publishedAt", true)
	if err != nil {
		return nil, err
	}
	f := &Feed[models.Post]{sub: sub, ch: make(chan Snapshot[models.Post], 1)}
	go f.pump(func(id string, doc remote.Document) models.Post {
		return models.PostFromFields(id, doc)
	})
	return f, nil
}

// Categories subscribes to the categories collection ordered by name.
func (a *Adapter) Categories(ctx context.Context) (*Feed[models.Category], error) {
	sub, err := a.store.Subscribe(ctx, "categories", "name", false)
	if err != nil {
		return nil, err
	}
	f := &Feed[models.Category]{sub: sub, ch: make(chan Snapshot[models.Category], 1)}
	go f.pump(func(id string, doc remote.Document) models.Category {
		return models.CategoryFromFields(id, doc)
	})
	return f, nil
}
