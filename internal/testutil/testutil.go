// Package testutil provides shared test helpers for setting up local
// stores and ready engine instances.
package testutil

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/plumeblog/plume/internal/auth"
	"github.com/plumeblog/plume/internal/blog"
	"github.com/plumeblog/plume/internal/cache"
	"github.com/plumeblog/plume/internal/events"
	"github.com/plumeblog/plume/internal/localstore"
	"github.com/plumeblog/plume/internal/models"
)

// TempStore creates a temporary SQLite-backed local store that is
// automatically cleaned up.
func TempStore(t *testing.T) *localstore.Store {
	t.Helper()
	dbFile, err := os.CreateTemp(t.TempDir(), "plume-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()

	store, err := localstore.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// LocalService builds a started, ready local-mode engine whose caches
// persist to store. The returned broker carries its mutation events.
func LocalService(t *testing.T, store *localstore.Store) (*blog.Service, *events.Broker) {
	t.Helper()

	broker := events.NewBroker()
	t.Cleanup(broker.Close)

	svc := blog.New(blog.Deps{
		Local: store,
		Posts: cache.New(
			func(p models.Post) string { return p.ID },
			cache.WithSort(func(a, b models.Post) bool { return a.PublishedAt.After(b.PublishedAt) }),
			cache.WithPersist(persistTo[models.Post](store, blog.PostsKey), time.Millisecond, nil)),
		Cats: cache.New(
			func(c models.Category) string { return c.ID },
			cache.WithSort(func(a, b models.Category) bool { return a.Name < b.Name }),
			cache.WithPersist(persistTo[models.Category](store, blog.CategoriesKey), time.Millisecond, nil)),
		Auth:   auth.NewResolved(&auth.User{ID: "local"}),
		Broker: broker,
	})
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(svc.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := svc.AwaitReady(ctx); err != nil {
		t.Fatalf("AwaitReady: %v", err)
	}
	return svc, broker
}

func persistTo[T any](store *localstore.Store, key string) func([]T) error {
	return func(items []T) error {
		data, err := json.Marshal(items)
		if err != nil {
			return err
		}
		return store.Write(key, data)
	}
}
