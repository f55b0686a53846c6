package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/plumeblog/plume/internal/apperr"
	"github.com/plumeblog/plume/internal/models"
	"github.com/plumeblog/plume/internal/remote"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func waitPosts(t *testing.T, f *Feed[models.Post]) Snapshot[models.Post] {
	t.Helper()
	select {
	case snap, ok := <-f.C():
		if !ok {
			t.Fatalf("feed closed: %v", f.Err())
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for snapshot")
	}
	return Snapshot[models.Post]{}
}

func TestPostsFeedDecodesSnapshots(t *testing.T) {
	store := remote.NewMemory()
	defer store.Close()
	ctx := context.Background()

	p := models.Post{Title: "Hello World", Category: "Demo", Status: models.StatusPublished, PublishedAt: time.Now()}
	id, err := store.Add(ctx, "posts", remote.Document(p.Fields()))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	a := NewAdapter(store)
	f, err := a.Posts(ctx)
	if err != nil {
		t.Fatalf("Posts: %v", err)
	}
	defer f.Close()

	snap := waitPosts(t, f)
	if len(snap.Items) != 1 {
		t.Fatalf("got %d posts, want 1", len(snap.Items))
	}
	got := snap.Items[0]
	if got.ID != id || got.Title != "Hello World" || got.Category != "Demo" {
		t.Errorf("decoded post = %+v", got)
	}
}

func TestSnapshotsArriveInOrder(t *testing.T) {
	store := remote.NewMemory()
	defer store.Close()
	ctx := context.Background()

	a := NewAdapter(store)
	f, err := a.Posts(ctx)
	if err != nil {
		t.Fatalf("Posts: %v", err)
	}
	defer f.Close()

	var lastSeq uint64
	snap := waitPosts(t, f)
	lastSeq = snap.Seq

	for i := 0; i < 3; i++ {
		p := models.Post{Title: "t", PublishedAt: time.Now()}
		if _, err := store.Add(ctx, "posts", remote.Document(p.Fields())); err != nil {
			t.Fatalf("Add: %v", err)
		}
		snap = waitPosts(t, f)
		if snap.Seq <= lastSeq {
			t.Fatalf("seq went backwards: %d after %d", snap.Seq, lastSeq)
		}
		lastSeq = snap.Seq
	}
}

func TestStoreCloseTerminatesFeed(t *testing.T) {
	store := remote.NewMemory()
	ctx := context.Background()

	a := NewAdapter(store)
	f, err := a.Categories(ctx)
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}

	// Drain the initial snapshot, then close the store underneath the feed.
	<-f.C()
	store.Close()

	select {
	case _, ok := <-f.C():
		if ok {
			t.Fatal("expected channel close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for feed termination")
	}
	if !errors.Is(f.Err(), apperr.ErrClosed) {
		t.Errorf("Err = %v, want ErrClosed", f.Err())
	}
}

func TestFeedCloseStopsDelivery(t *testing.T) {
	store := remote.NewMemory()
	defer store.Close()
	ctx := context.Background()

	a := NewAdapter(store)
	f, err := a.Posts(ctx)
	if err != nil {
		t.Fatalf("Posts: %v", err)
	}
	<-f.C()
	f.Close()

	// The pump drains and closes the typed channel.
	select {
	case _, ok := <-f.C():
		if ok {
			t.Fatal("received snapshot after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for channel close")
	}
}
