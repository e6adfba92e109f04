// Package redis opens the shared Redis client used by the change feed,
// the revocation list and the redis record store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkdeck/internal/logger"
)

// ConnectOptions defines the client and its startup retry policy.
type ConnectOptions struct {
	Addr         string `validate:"required"` // ex: "localhost:6379"
	User         string
	Password     string
	RedisDB      int `validate:"gte=0"`
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int `validate:"gte=0"`
	ClientName   string // CLIENT SETNAME value, shows up in CLIENT LIST

	ConnectTimeout time.Duration `validate:"gt=0"`  // total budget for the first successful ping (ex: 30s)
	RetryInterval  time.Duration `validate:"gt=0"`  // first wait between attempts, doubled each time (ex: 2s)
	MaxWait        time.Duration `validate:"gt=0"`  // cap on the wait between attempts (ex: 10s)
	PingTimeout    time.Duration `validate:"gt=0"`  // per-attempt ping timeout (ex: 5s)
	WarnThreshold  int           `validate:"gte=0"` // attempts logged as warnings before escalating to errors
}

var optionsValidator = validator.New()

// New builds a client and blocks until Redis answers a ping, ConnectTimeout
// elapses, or ctx is cancelled. The client is closed on failure.
func New(ctx context.Context, opts ConnectOptions, log logger.Logger) (*redis.Client, error) {
	if err := optionsValidator.Struct(opts); err != nil {
		log.Error("invalid redis options", logger.Error(err))
		return nil, fmt.Errorf("invalid redis options: %w", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.User,
		Password:     opts.Password,
		DB:           opts.RedisDB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
		ClientName:   opts.ClientName,
	})

	if err := waitUntilReachable(ctx, client, opts, log.With(logger.String("addr", opts.Addr))); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Ping checks that the server answers within timeout.
func Ping(ctx context.Context, client *redis.Client, timeout time.Duration) error {
	if client == nil {
		return errors.New("redis client not initialized")
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return client.Ping(pingCtx).Err()
}

// backoff doubles from initial up to max.
type backoff struct {
	next, max time.Duration
}

func (b *backoff) wait() time.Duration {
	d := b.next
	b.next = min(b.next*2, b.max)
	return d
}

func waitUntilReachable(parent context.Context, client *redis.Client, opts ConnectOptions, log logger.Logger) error {
	ctx, cancel := context.WithTimeout(parent, opts.ConnectTimeout)
	defer cancel()

	log.Info("connecting to redis", logger.Duration("timeout", opts.ConnectTimeout))

	started := time.Now()
	delay := backoff{next: opts.RetryInterval, max: opts.MaxWait}

	for attempt := 1; ; attempt++ {
		err := Ping(ctx, client, opts.PingTimeout)
		if err == nil {
			if attempt > 1 {
				log.Warn("connected to redis after retry",
					logger.Int("attempts", attempt),
					logger.Duration("elapsed", time.Since(started)))
			} else {
				log.Info("connected to redis")
			}
			return nil
		}

		wait := delay.wait()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Error("redis unavailable, giving up",
				logger.Int("attempts", attempt),
				logger.Duration("timeout", opts.ConnectTimeout),
				logger.Error(err))
			return fmt.Errorf("redis unavailable at %s after %d attempts (timeout: %v): %w",
				opts.Addr, attempt, opts.ConnectTimeout, err)
		case <-timer.C:
		}

		fields := []logger.Field{
			logger.Int("attempt", attempt),
			logger.Duration("next_retry_in", wait),
			logger.Error(err),
		}
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < 10*time.Second {
			log.Error("redis still down, timeout approaching",
				append(fields, logger.Duration("remaining", time.Until(deadline)))...)
		} else if attempt <= opts.WarnThreshold {
			log.Warn("redis connection failed, retrying", fields...)
		} else {
			log.Error("redis still unavailable, retrying", fields...)
		}
	}
}
