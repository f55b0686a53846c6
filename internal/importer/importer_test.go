package importer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/plumeblog/plume/internal/auth"
	"github.com/plumeblog/plume/internal/blog"
	"github.com/plumeblog/plume/internal/cache"
	"github.com/plumeblog/plume/internal/localstore"
	"github.com/plumeblog/plume/internal/models"
)

func newFixture(t *testing.T, dbPath string) (*blog.Service, *localstore.Store) {
	t.Helper()
	store, err := localstore.Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	persistPosts := func(items []models.Post) error {
		data, err := json.Marshal(items)
		if err != nil {
			return err
		}
		return store.Write(blog.PostsKey, data)
	}
	persistCats := func(items []models.Category) error {
		data, err := json.Marshal(items)
		if err != nil {
			return err
		}
		return store.Write(blog.CategoriesKey, data)
	}
	svc := blog.New(blog.Deps{
		Local: store,
		Posts: cache.New(func(p models.Post) string { return p.ID },
			cache.WithPersist(persistPosts, time.Millisecond, nil)),
		Cats: cache.New(func(c models.Category) string { return c.ID },
			cache.WithPersist(persistCats, time.Millisecond, nil)),
		Auth: auth.NewResolved(&auth.User{ID: "importer"}),
	})
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc, store
}

func writeDrop(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestStartupSweepImportsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	writeDrop(t, dir, "hello.md", "---\ntitle: Hello\ncategory: Go\n---\nBody here.\n")
	writeDrop(t, dir, "untitled.md", "plain body, no frontmatter")

	svc, store := newFixture(t, filepath.Join(t.TempDir(), "plume.db"))
	im := New(svc, store, dir, "importer", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- im.Run(ctx) }()

	waitFor(t, func() bool { return len(svc.All()) == 2 })

	var hello, untitled bool
	for _, p := range svc.All() {
		switch p.Title {
		case "Hello":
			hello = p.Category == "Go" && p.AuthorID == "importer"
		case "untitled":
			untitled = p.Category == DefaultCategory
		}
	}
	if !hello {
		t.Error("frontmatter post not imported correctly")
	}
	if !untitled {
		t.Error("plain post should fall back to filename title and default category")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestWatcherImportsNewDrop(t *testing.T) {
	dir := t.TempDir()
	svc, store := newFixture(t, filepath.Join(t.TempDir(), "plume.db"))
	im := New(svc, store, dir, "importer", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go im.Run(ctx)

	// Give the watcher a moment to attach before dropping the file.
	time.Sleep(50 * time.Millisecond)
	writeDrop(t, dir, "late.md", "---\ntitle: Late arrival\ncategory: Go\n---\nBody.\n")

	waitFor(t, func() bool { return len(svc.All()) == 1 })
}

func TestChecksumDedupeAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "plume.db")
	content := "---\ntitle: Once\ncategory: Go\n---\nOnly once.\n"
	writeDrop(t, dir, "once.md", content)

	svc, store := newFixture(t, dbPath)
	ctx, cancel := context.WithCancel(context.Background())
	go New(svc, store, dir, "importer", nil).Run(ctx)
	waitFor(t, func() bool { return len(svc.All()) == 1 })
	cancel()
	svc.Close()
	store.Close()

	// Same content under a new name must be skipped after restart.
	writeDrop(t, dir, "copy.md", content)

	revived, revivedStore := newFixture(t, dbPath)
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	go New(revived, revivedStore, dir, "importer", nil).Run(ctx2)

	// The sweep has finished once a genuinely new file lands.
	writeDrop(t, dir, "new.md", "---\ntitle: New\ncategory: Go\n---\nFresh.\n")
	waitFor(t, func() bool { return len(revived.All()) == 2 })

	for _, p := range revived.All() {
		if p.Title == "Once" && p.Content != "Only once.\n" {
			t.Errorf("unexpected duplicate content: %+v", p)
		}
	}
	if got := len(revived.All()); got != 2 {
		t.Errorf("posts = %d, want 2 (duplicate skipped)", got)
	}
}
