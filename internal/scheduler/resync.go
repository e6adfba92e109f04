package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/linkdeck/internal/livelist"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
)

// ActiveLists exposes the live lists currently held by the index.
type ActiveLists interface {
	All() []*livelist.Synchronizer
}

// Resyncer periodically forces a full reload of every active live list.
// It is also the retry path for lists whose initial load failed.
type Resyncer struct {
	lists         ActiveLists
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger <-chan struct{}
}

// NewResyncer creates a new resyncer. manualTrigger may be nil.
func NewResyncer(
	lists ActiveLists,
	log logger.Logger,
	interval time.Duration,
	manualTrigger <-chan struct{},
) *Resyncer {
	return &Resyncer{
		lists:         lists,
		logger:        log.Named("resync"),
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start begins the periodic resync loop
func (r *Resyncer) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Resync("periodic resync")
			case <-r.manualTrigger:
				r.logger.Info("manual resync triggered")
				r.Resync("manual resync")
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the resyncer
func (r *Resyncer) Stop() {
	close(r.stopCh)
}

// Resync requests a reload on every active list and returns how many accepted it.
// A list that already has a reload pending coalesces the request.
func (r *Resyncer) Resync(reason string) int {
	lists := r.lists.All()
	queued := 0
	for _, l := range lists {
		if l.Reload(reason) {
			queued++
		}
	}

	if len(lists) > 0 {
		r.logger.Debug("resync requested",
			logger.String("reason", reason),
			logger.Int("lists", len(lists)),
			logger.Int("queued", queued))
	}
	return queued
}
