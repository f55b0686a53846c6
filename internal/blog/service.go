// Package blog is the consistency facade: the single entry point through
// which the rest of the application reads and mutates blog content.
//
// The facade composes the change feed, the local caches, the integrity
// coordinator, the view counter, and the auth state behind a readiness
// gate. In remote mode the feed-consumption loops are the only writers of
// the caches; in local-only mode the mutation methods write the caches
// directly and the caches persist themselves. The two write paths are never
// active at once.
package blog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plumeblog/plume/internal/apperr"
	"github.com/plumeblog/plume/internal/auth"
	"github.com/plumeblog/plume/internal/cache"
	"github.com/plumeblog/plume/internal/events"
	"github.com/plumeblog/plume/internal/feed"
	"github.com/plumeblog/plume/internal/integrity"
	"github.com/plumeblog/plume/internal/localstore"
	"github.com/plumeblog/plume/internal/models"
	"github.com/plumeblog/plume/internal/remote"
	"github.com/plumeblog/plume/internal/search"
	"github.com/plumeblog/plume/internal/views"
)

// Storage keys for the local-only snapshots.
const (
	PostsKey      = "posts"
	CategoriesKey = "categories"
)

// Deps bundles the facade's collaborators. Exactly one of Store and Local
// must be set: Store for remote/memory mode, Local for local-only mode.
type Deps struct {
	Store  remote.Store
	Local  *localstore.Store
	Posts  *cache.Cache[models.Post]
	Cats   *cache.Cache[models.Category]
	Auth   *auth.State
	Broker *events.Broker
	Search search.Index
	Logger *slog.Logger
}

// PostUpdate carries the editable fields of a post. Nil means unchanged.
// Category is deliberately absent: moving a post between categories goes
// through delete and re-create so the counts stay consistent.
type PostUpdate struct {
	Title   *string
	Content *string
	Status  *string
	Note    string
}

// Service is the consistency facade.
type Service struct {
	store  remote.Store
	local  *localstore.Store
	posts  *cache.Cache[models.Post]
	cats   *cache.Cache[models.Category]
	authSt *auth.State
	broker *events.Broker
	index  search.Index
	logger *slog.Logger

	coord   *integrity.Coordinator
	counter *views.Counter
	now     func() time.Time
	newID   func() string

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}

	postsFeed *feed.Feed[models.Post]
	catsFeed  *feed.Feed[models.Category]
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New assembles the facade. Call Start before serving requests.
func New(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   d.Store,
		local:   d.Local,
		posts:   d.Posts,
		cats:    d.Cats,
		authSt:  d.Auth,
		broker:  d.Broker,
		index:   d.Search,
		logger:  logger,
		coord:   integrity.New(d.Store, d.Posts, d.Cats),
		counter: views.New(d.Store, d.Posts),
		now:     time.Now,
		newID:   uuid.NewString,
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (s *Service) localMode() bool { return s.store == nil }

// Start brings the facade online. In remote mode it opens the change feeds
// and spawns the consumption loops; in local-only mode it loads the stored
// snapshots into the caches. Readiness is signalled once the auth identity
// has resolved and the initial data has arrived.
func (s *Service) Start(ctx context.Context) error {
	if s.localMode() {
		if err := s.loadLocal(); err != nil {
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			select {
			case <-s.authSt.Resolved():
				s.markReady()
			case <-ctx.Done():
			case <-s.done:
			}
		}()
		return nil
	}

	adapter := feed.NewAdapter(s.store)
	pf, err := adapter.Posts(ctx)
	if err != nil {
		return fmt.Errorf("blog: open posts feed: %w", err)
	}
	cf, err := adapter.Categories(ctx)
	if err != nil {
		pf.Close()
		return fmt.Errorf("blog: open categories feed: %w", err)
	}
	s.postsFeed = pf
	s.catsFeed = cf

	firstPosts := make(chan struct{})
	firstCats := make(chan struct{})

	s.wg.Add(3)
	go s.consumePosts(pf, firstPosts)
	go s.consumeCategories(cf, firstCats)
	go func() {
		defer s.wg.Done()
		for _, gate := range []<-chan struct{}{s.authSt.Resolved(), firstPosts, firstCats} {
			select {
			case <-gate:
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
		s.markReady()
	}()
	return nil
}

func (s *Service) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *Service) loadLocal() error {
	var posts []models.Post
	if err := s.readJSON(PostsKey, &posts); err != nil {
		return err
	}
	var cats []models.Category
	if err := s.readJSON(CategoriesKey, &cats); err != nil {
		return err
	}
	s.posts.Replace(posts)
	s.cats.Replace(cats)
	return nil
}

// readJSON loads one stored snapshot; a missing key means a fresh store.
func (s *Service) readJSON(key string, v any) error {
	data, err := s.local.Read(key)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("blog: load %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("blog: decode %s: %w", key, err)
	}
	return nil
}

func (s *Service) consumePosts(f *feed.Feed[models.Post], first chan struct{}) {
	defer s.wg.Done()
	got := false
	for snap := range f.C() {
		s.posts.Replace(snap.Items)
		if !got {
			got = true
			close(first)
		}
		s.publishChange(events.KindPostsChanged, len(snap.Items))
	}
	s.logFeedEnd("posts", f.Err())
}

func (s *Service) consumeCategories(f *feed.Feed[models.Category], first chan struct{}) {
	defer s.wg.Done()
	got := false
	for snap := range f.C() {
		s.cats.Replace(snap.Items)
		if !got {
			got = true
			close(first)
		}
		s.publishChange(events.KindCategoriesChanged, len(snap.Items))
	}
	s.logFeedEnd("categories", f.Err())
}

func (s *Service) logFeedEnd(collection string, err error) {
	if err == nil || errors.Is(err, apperr.ErrClosed) {
		return
	}
	s.logger.Error("blog: change feed terminated",
		slog.String("collection", collection),
		slog.String("error", err.Error()))
}

// Ready reports whether the initial data and identity have arrived.
func (s *Service) Ready() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// AwaitReady blocks until the facade is ready or the context ends.
func (s *Service) AwaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// All returns the cached posts, newest first. Before readiness the view is
// empty rather than partial.
func (s *Service) All() []models.Post {
	if !s.Ready() {
		return nil
	}
	return s.posts.All()
}

// Get returns one post by id.
func (s *Service) Get(id string) (models.Post, error) {
	if !s.Ready() {
		return models.Post{}, apperr.ErrNotFound
	}
	p, ok := s.posts.Get(id)
	if !ok {
		return models.Post{}, fmt.Errorf("blog: post %s: %w", id, apperr.ErrNotFound)
	}
	return p, nil
}

// Search fuzzy-matches the cached posts against query, best match first.
func (s *Service) Search(query string) []models.Post {
	if !s.Ready() {
		return nil
	}
	return s.index.Search(s.posts.All(), query)
}

// ByCategory returns the posts filed under the named category. The match is
// case-insensitive; cache order is preserved.
func (s *Service) ByCategory(name string) []models.Post {
	if !s.Ready() {
		return nil
	}
	want := models.NormalizeName(name)
	var out []models.Post
	for _, p := range s.posts.All() {
		if models.NormalizeName(p.Category) == want {
			out = append(out, p)
		}
	}
	return out
}

// Categories returns the cached categories in name order.
func (s *Service) Categories() []models.Category {
	if !s.Ready() {
		return nil
	}
	return s.cats.All()
}

// CreatePost creates a post authored by the requester.
func (s *Service) CreatePost(ctx context.Context, requesterID string, p models.Post) (models.Post, error) {
	if err := s.gate(); err != nil {
		return models.Post{}, err
	}
	p.AuthorID = requesterID
	created, err := s.coord.CreatePost(ctx, p)
	if err != nil {
		return models.Post{}, err
	}
	s.publishEntity(events.KindPostCreated, created.ID)
	s.publishLocalChange(events.KindPostsChanged, s.posts.Len())
	return created, nil
}

// UpdatePost applies an edit, appends an update-log entry, and bumps
// UpdatedAt. Update logs are append-only.
func (s *Service) UpdatePost(ctx context.Context, id string, upd PostUpdate) (models.Post, error) {
	if err := s.gate(); err != nil {
		return models.Post{}, err
	}
	p, ok := s.posts.Get(id)
	if !ok {
		return models.Post{}, fmt.Errorf("blog: update post %s: %w", id, apperr.ErrNotFound)
	}

	var changes []string
	if upd.Title != nil {
		if t := strings.TrimSpace(*upd.Title); t != "" && t != p.Title {
			p.Title = t
			changes = append(changes, "title")
		}
	}
	if upd.Content != nil && *upd.Content != p.Content {
		p.Content = *upd.Content
		p.Excerpt = models.MakeExcerpt(p.Content)
		p.ReadTime = models.ComputeReadTime(p.Content)
		changes = append(changes, "content")
	}
	if upd.Status != nil && *upd.Status != p.Status {
		if *upd.Status != models.StatusDraft && *upd.Status != models.StatusPublished {
			return models.Post{}, fmt.Errorf("%w: status must be %q or %q",
				apperr.ErrValidation, models.StatusDraft, models.StatusPublished)
		}
		p.Status = *upd.Status
		changes = append(changes, "status")
	}
	if len(changes) == 0 && upd.Note == "" {
		return p, nil
	}

	now := s.now()
	p.UpdatedAt = now
	p.UpdateLogs = append(p.UpdateLogs, models.UpdateLog{
		ID:      s.newID(),
		Date:    now.Format(time.RFC3339),
		Version: "v" + strconv.Itoa(len(p.UpdateLogs)+2),
		Changes: changes,
		Note:    upd.Note,
	})

	if s.localMode() {
		s.posts.Put(p)
	} else {
		fields := remote.Document(p.Fields())
		delete(fields, "views")
		delete(fields, "lastViewedAt")
		if err := s.store.Update(ctx, "posts", id, fields); err != nil {
			return models.Post{}, fmt.Errorf("blog: update post %s: %w", id, err)
		}
	}
	s.publishEntity(events.KindPostUpdated, id)
	s.publishLocalChange(events.KindPostsChanged, s.posts.Len())
	return p, nil
}

// DeletePost removes a post. Only its author may delete it.
func (s *Service) DeletePost(ctx context.Context, id, requesterID string) error {
	if err := s.gate(); err != nil {
		return err
	}
	if err := s.coord.DeletePost(ctx, id, requesterID); err != nil {
		return err
	}
	s.publishEntity(events.KindPostDeleted, id)
	s.publishLocalChange(events.KindPostsChanged, s.posts.Len())
	return nil
}

// CreateCategory creates an explicit empty category.
func (s *Service) CreateCategory(ctx context.Context, name, description string) (models.Category, error) {
	if err := s.gate(); err != nil {
		return models.Category{}, err
	}
	cat, err := s.coord.CreateCategory(ctx, name, description)
	if err != nil {
		return models.Category{}, err
	}
	s.publishEntity(events.KindCategoryCreated, cat.ID)
	s.publishLocalChange(events.KindCategoriesChanged, s.cats.Len())
	return cat, nil
}

// UpdateCategory renames a category, cascading the new name to every
// referencing post atomically.
func (s *Service) UpdateCategory(ctx context.Context, id, newName, description string) error {
	if err := s.gate(); err != nil {
		return err
	}
	if err := s.coord.RenameCategory(ctx, id, newName, description); err != nil {
		return err
	}
	s.publishEntity(events.KindCategoryUpdated, id)
	s.publishLocalChange(events.KindCategoriesChanged, s.cats.Len())
	return nil
}

// IncrementViews bumps a post's view count by one.
func (s *Service) IncrementViews(ctx context.Context, id string) error {
	if err := s.gate(); err != nil {
		return err
	}
	return s.counter.Increment(ctx, id)
}

// Subscribe attaches an SSE client to the event broker.
func (s *Service) Subscribe() chan []byte {
	return s.broker.Subscribe()
}

// Unsubscribe detaches an SSE client.
func (s *Service) Unsubscribe(ch chan []byte) {
	s.broker.Unsubscribe(ch)
}

// gate rejects mutations until the facade is ready: a write against an
// unloaded local cache would be silently lost on load.
func (s *Service) gate() error {
	if !s.Ready() {
		return apperr.ErrNotReady
	}
	return nil
}

func (s *Service) publishEntity(kind, id string) {
	if s.broker != nil {
		s.broker.PublishEntity(kind, id)
	}
}

func (s *Service) publishChange(kind string, count int) {
	if s.broker != nil {
		s.broker.PublishChange(kind, count)
	}
}

// publishLocalChange fires the coarse change kind from the mutation path.
// In remote mode the feed loop does this when the snapshot lands, so the
// mutation path stays quiet to avoid double events.
func (s *Service) publishLocalChange(kind string, count int) {
	if s.localMode() {
		s.publishChange(kind, count)
	}
}

// Close stops the feed loops and flushes the caches. The remote store and
// the broker are owned by the caller and stay open.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.postsFeed != nil {
			s.postsFeed.Close()
		}
		if s.catsFeed != nil {
			s.catsFeed.Close()
		}
		s.wg.Wait()
		s.posts.Close()
		s.cats.Close()
	})
}
