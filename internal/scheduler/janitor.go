package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/linkdeck/internal/logger"
)

const (
	// DefaultIdleThreshold is how long an unobserved session survives when none is configured
	DefaultIdleThreshold = 10 * time.Minute
)

// IdleSessions can close sessions nobody has held for a while.
type IdleSessions interface {
	CloseIdle(threshold time.Duration) []string
}

// Janitor handles cleanup of idle live-list sessions
type Janitor struct {
	sessions  IdleSessions
	logger    logger.Logger
	interval  time.Duration
	threshold time.Duration
	stopCh    chan struct{}
}

// NewJanitor creates a new janitor
func NewJanitor(
	sessions IdleSessions,
	log logger.Logger,
	interval time.Duration,
	threshold time.Duration,
) *Janitor {
	if threshold == 0 {
		threshold = DefaultIdleThreshold
	}

	return &Janitor{
		sessions:  sessions,
		logger:    log.Named("janitor"),
		interval:  interval,
		threshold: threshold,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic sweep
func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				j.Sweep()
			case <-j.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the janitor
func (j *Janitor) Stop() {
	close(j.stopCh)
}

// Sweep closes idle sessions and returns their owners.
func (j *Janitor) Sweep() []string {
	closed := j.sessions.CloseIdle(j.threshold)

	if len(closed) > 0 {
		j.logger.Info("closed idle sessions",
			logger.Int("count", len(closed)),
			logger.Strings("owners", closed),
			logger.Duration("idle_for", j.threshold))
	} else {
		j.logger.Debug("no idle sessions to close")
	}

	return closed
}
