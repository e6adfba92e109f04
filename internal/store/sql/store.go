// Package sql is the relational record store backend (postgres or sqlite via gorm).
// Change events go through the shared Redis feed after each committed write.
package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/MrSnakeDoc/linkdeck/internal/domain"
	"github.com/MrSnakeDoc/linkdeck/internal/feed"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
	"github.com/MrSnakeDoc/linkdeck/internal/store"
)

// bookmarkRow is the table model. Domain types stay free of gorm tags.
type bookmarkRow struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	OwnerID   string    `gorm:"type:varchar(128);not null;index:idx_bookmarks_owner_created,priority:1"`
	Title     string    `gorm:"type:varchar(512);not null"`
	URL       string    `gorm:"type:varchar(2048);not null"`
	CreatedAt time.Time `gorm:"not null;index:idx_bookmarks_owner_created,priority:2"`
}

func (bookmarkRow) TableName() string { return "bookmarks" }

func (r bookmarkRow) toDomain() domain.Bookmark {
	return domain.Bookmark{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Title:     r.Title,
		URL:       r.URL,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

// Store implements store.Store on top of gorm.
type Store struct {
	db      *gorm.DB
	feed    *feed.Feed
	logger  logger.Logger
	backend string
	now     func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open connects to postgres or sqlite and migrates the schema.
func Open(backend, dsn string, f *feed.Feed, log logger.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch backend {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql backend: %q", backend)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", backend, err)
	}

	s := NewStore(db, backend, f, log)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStore wraps an existing gorm handle.
func NewStore(db *gorm.DB, backend string, f *feed.Feed, log logger.Logger) *Store {
	return &Store{
		db:      db,
		feed:    f,
		logger:  log,
		backend: backend,
		now:     time.Now,
	}
}

// WithClock replaces the time source used for created_at.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Migrate creates or updates the bookmarks table.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&bookmarkRow{}); err != nil {
		return fmt.Errorf("failed to migrate bookmarks table: %w", err)
	}
	return nil
}

func (s *Store) FetchOwned(ctx context.Context, ownerID string) ([]domain.Bookmark, error) {
	var rows []bookmarkRow
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, domain.NewStoreError("fetch", fmt.Errorf("failed to query bookmarks: %w", err))
	}

	bookmarks := make([]domain.Bookmark, 0, len(rows))
	for _, r := range rows {
		bookmarks = append(bookmarks, r.toDomain())
	}
	return bookmarks, nil
}

func (s *Store) Insert(ctx context.Context, ownerID, title, url string) (domain.Bookmark, error) {
	if ownerID == "" {
		return domain.Bookmark{}, domain.NewStoreError("insert", errors.New("owner id is required"))
	}

	row := bookmarkRow{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Title:     title,
		URL:       url,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.Bookmark{}, domain.NewStoreError("insert", fmt.Errorf("failed to insert bookmark: %w", err))
	}

	bookmark := row.toDomain()
	s.publish(ctx, ownerID, domain.ChangeEvent{Kind: domain.EventInsert, New: &bookmark})
	return bookmark, nil
}

func (s *Store) Remove(ctx context.Context, ownerID, id string) error {
	var row bookmarkRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND owner_id = ?", id, ownerID).First(&row).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&bookmarkRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NewStoreError("remove", fmt.Errorf("%w: %s", domain.ErrNotFound, id))
		}
		return domain.NewStoreError("remove", fmt.Errorf("failed to delete bookmark: %w", err))
	}

	old := row.toDomain()
	s.publish(ctx, ownerID, domain.ChangeEvent{Kind: domain.EventDelete, Old: &old})
	return nil
}

func (s *Store) Subscribe(ownerID string, onEvent domain.EventHandler, onStatus domain.StatusHandler) (store.Subscription, error) {
	sub, err := s.feed.Subscribe(ownerID, onEvent, onStatus)
	if err != nil {
		return nil, domain.NewStoreError("subscribe", err)
	}
	return sub, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Backend() string { return s.backend }

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// publish is best effort: the row is committed, live lists also pick it up
// through optimistic apply or the periodic resync.
func (s *Store) publish(ctx context.Context, ownerID string, ev domain.ChangeEvent) {
	if err := s.feed.Publish(ctx, ownerID, ev); err != nil {
		s.logger.Warn("failed to publish change event",
			logger.String("owner_id", ownerID),
			logger.String("kind", string(ev.Kind)),
			logger.Error(err))
	}
}
