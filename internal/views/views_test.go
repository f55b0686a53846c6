package views

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/plumeblog/plume/internal/apperr"
	"github.com/plumeblog/plume/internal/cache"
	"github.com/plumeblog/plume/internal/models"
	"github.com/plumeblog/plume/internal/remote"
)

func postID(p models.Post) string { return p.ID }

func TestLocalIncrement(t *testing.T) {
	posts := cache.New(postID)
	posts.Replace([]models.Post{{ID: "p1", Title: "t"}})
	c := New(nil, posts)

	if err := c.Increment(context.Background(), "p1"); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	p, _ := posts.Get("p1")
	if p.Views != 1 {
		t.Errorf("views = %d, want 1", p.Views)
	}
	if p.LastViewedAt == 0 {
		t.Error("lastViewedAt not stamped")
	}
}

func TestLocalIncrementMissing(t *testing.T) {
	c := New(nil, cache.New(postID))
	err := c.Increment(context.Background(), "nope")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRemoteIncrementMissing(t *testing.T) {
	store := remote.NewMemory()
	defer store.Close()
	c := New(store, cache.New(postID))
	err := c.Increment(context.Background(), "nope")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentRemoteIncrementsLoseNothing(t *testing.T) {
	store := remote.NewMemory()
	defer store.Close()
	ctx := context.Background()

	p := models.Post{Title: "t", PublishedAt: time.Now()}
	id, err := store.Add(ctx, "posts", remote.Document(p.Fields()))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	c := New(store, cache.New(postID))
	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Increment(ctx, id); err != nil {
				t.Errorf("Increment: %v", err)
			}
		}()
	}
	wg.Wait()

	sub, err := store.Subscribe(ctx, "posts", "publishedAt", true)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()
	select {
	case snap := <-sub.C():
		got := models.PostFromFields(snap.IDs[0], snap.Docs[0])
		if got.Views != n {
			t.Errorf("views = %d, want %d (no lost updates)", got.Views, n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout")
	}
}
