package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/linkdeck/internal/domain"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
	"github.com/MrSnakeDoc/linkdeck/internal/sources/homepage"
)

// ImportTarget is the subset of the store the importer writes through.
type ImportTarget interface {
	FetchOwned(ctx context.Context, ownerID string) ([]domain.Bookmark, error)
	Insert(ctx context.Context, ownerID, title, url string) (domain.Bookmark, error)
}

// ImportResult summarises one import run.
type ImportResult struct {
	Added   int
	Skipped int
	Failed  int
}

// Importer seeds an owner's bookmarks from a homepage bookmarks.yaml
type Importer struct {
	loader  *homepage.BookmarkLoader
	target  ImportTarget
	ownerID string
	logger  logger.Logger
}

// NewImporter creates a new importer
func NewImporter(bookmarkFile, ownerID string, target ImportTarget, log logger.Logger) *Importer {
	return &Importer{
		loader:  homepage.NewBookmarkLoader(bookmarkFile),
		target:  target,
		ownerID: ownerID,
		logger:  log.Named("import"),
	}
}

// Import inserts every entry of the file the owner does not already have.
// A failed insert is logged and counted; the run carries on.
func (im *Importer) Import(ctx context.Context) (ImportResult, error) {
	var res ImportResult

	if im.ownerID == "" {
		return res, domain.ErrUnauthenticated
	}

	im.logger.Info("importing homepage bookmarks",
		logger.String("file", im.loader.Path()),
		logger.String("owner", im.ownerID))

	config, err := im.loader.Load()
	if err != nil {
		return res, fmt.Errorf("failed to load bookmarks: %w", err)
	}

	entries, err := homepage.MapBookmarks(config)
	if err != nil {
		if errors.Is(err, homepage.ErrNoBookmarks) {
			im.logger.Warn("bookmarks file has nothing to import")
			return res, nil
		}
		return res, fmt.Errorf("failed to map bookmarks: %w", err)
	}

	existing, err := im.target.FetchOwned(ctx, im.ownerID)
	if err != nil {
		return res, fmt.Errorf("failed to fetch existing bookmarks: %w", err)
	}

	have := make(map[string]struct{}, len(existing))
	for _, b := range existing {
		if u, err := domain.NormalizeURL(b.URL); err == nil {
			have[u] = struct{}{}
		}
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, ok := have[e.URL]; ok {
			res.Skipped++
			continue
		}

		if _, err := im.target.Insert(ctx, im.ownerID, e.Title, e.URL); err != nil {
			res.Failed++
			im.logger.Warn("failed to import bookmark",
				logger.String("title", e.Title),
				logger.String("url", e.URL),
				logger.Error(err))
			continue
		}
		have[e.URL] = struct{}{}
		res.Added++
	}

	im.logger.Info("homepage import completed",
		logger.Int("added", res.Added),
		logger.Int("skipped", res.Skipped),
		logger.Int("failed", res.Failed))

	return res, nil
}
