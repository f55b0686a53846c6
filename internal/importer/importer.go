// Package importer turns Markdown files dropped into a watched directory
// into blog posts.
//
// Files are deduplicated by content checksum: re-delivering a file whose
// content was already imported is a no-op, across restarts. The ledger of
// imported checksums lives in the local store when one is configured and in
// memory otherwise.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/plumeblog/plume/internal/apperr"
	"github.com/plumeblog/plume/internal/blog"
	"github.com/plumeblog/plume/internal/checksum"
	"github.com/plumeblog/plume/internal/localstore"
	"github.com/plumeblog/plume/internal/models"
	"github.com/plumeblog/plume/internal/parser"
)

// LedgerKey is the local-store key holding the imported-checksum ledger.
const LedgerKey = "importer/checksums"

// DefaultCategory files imported posts whose frontmatter names none.
const DefaultCategory = "Imported"

// Importer watches a drop directory and creates posts from its files.
type Importer struct {
	svc    *blog.Service
	store  *localstore.Store // nil keeps the ledger in memory only
	dir    string
	userID string
	logger *slog.Logger

	seen map[string]struct{}
}

// New creates an importer for dir. Posts are created as userID.
func New(svc *blog.Service, store *localstore.Store, dir, userID string, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		svc:    svc,
		store:  store,
		dir:    dir,
		userID: userID,
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

// Run loads the ledger, sweeps the directory for pre-existing files, then
// watches for new drops until ctx is cancelled.
func (im *Importer) Run(ctx context.Context) error {
	if err := im.svc.AwaitReady(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	if err := im.loadLedger(); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("importer: start watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(im.dir); err != nil {
		return fmt.Errorf("importer: watch %s: %w", im.dir, err)
	}

	im.sweep(ctx)
	im.logger.Info("importer: started", slog.String("dir", im.dir))

	for {
		select {
		case <-ctx.Done():
			im.logger.Info("importer: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !strings.HasSuffix(ev.Name, ".md") {
				continue
			}
			im.importFile(ctx, ev.Name)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			im.logger.Error("importer: watch error", slog.String("error", watchErr.Error()))
		}
	}
}

// sweep imports files already present at startup.
func (im *Importer) sweep(ctx context.Context) {
	_ = filepath.WalkDir(im.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		im.importFile(ctx, path)
		return nil
	})
}

func (im *Importer) importFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		im.logger.Warn("importer: read failed",
			slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	sum := checksum.Sum(data)
	if _, dup := im.seen[sum]; dup {
		im.logger.Debug("importer: already imported", slog.String("path", path))
		return
	}

	res, err := parser.Parse(data)
	if err != nil {
		im.logger.Warn("importer: parse failed",
			slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	title := res.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), ".md")
	}
	category := res.Category
	if category == "" {
		category = DefaultCategory
	}

	post := models.Post{
		Title:    title,
		Content:  res.Body,
		Excerpt:  res.Excerpt,
		Category: category,
		Status:   res.Status,
	}
	created, err := im.svc.CreatePost(ctx, im.userID, post)
	if err != nil {
		im.logger.Warn("importer: create post failed",
			slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	im.seen[sum] = struct{}{}
	im.saveLedger()
	im.logger.Info("importer: imported",
		slog.String("path", path), slog.String("post", created.ID))
}

func (im *Importer) loadLedger() error {
	if im.store == nil {
		return nil
	}
	data, err := im.store.Read(LedgerKey)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("importer: load ledger: %w", err)
	}
	var sums []string
	if err := json.Unmarshal(data, &sums); err != nil {
		return fmt.Errorf("importer: decode ledger: %w", err)
	}
	for _, s := range sums {
		im.seen[s] = struct{}{}
	}
	return nil
}

// saveLedger persists the checksum set; a failed save only costs dedupe
// across a restart, so it is logged and swallowed.
func (im *Importer) saveLedger() {
	if im.store == nil {
		return
	}
	sums := make([]string, 0, len(im.seen))
	for s := range im.seen {
		sums = append(sums, s)
	}
	data, err := json.Marshal(sums)
	if err == nil {
		err = im.store.Write(LedgerKey, data)
	}
	if err != nil {
		im.logger.Warn("importer: save ledger failed", slog.String("error", err.Error()))
	}
}
