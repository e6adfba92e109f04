package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkdeck/internal/domain"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
)

// Subscription is a live listener on one owner channel.
type Subscription struct {
	channel string
	pubsub  *redis.PubSub
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// Subscribe opens a listener on the owner's channel and returns immediately.
// Status goes connecting -> active, then errored/active on connection trouble
// (go-redis reconnects and resubscribes on the next receive), and closed on
// Unsubscribe. Handlers run on the subscription goroutine and must not block
// for long or call Unsubscribe themselves.
func (f *Feed) Subscribe(ownerID string, onEvent domain.EventHandler, onStatus domain.StatusHandler) (*Subscription, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("owner id is required")
	}
	if onEvent == nil {
		onEvent = func(domain.ChangeEvent) {}
	}
	if onStatus == nil {
		onStatus = func(domain.SubscriptionStatus, error) {}
	}

	channel := Channel(ownerID)
	ctx, cancel := context.WithCancel(context.Background())

	onStatus(domain.StatusConnecting, nil)

	sub := &Subscription{
		channel: channel,
		pubsub:  f.client.Subscribe(ctx, channel),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go f.receive(ctx, sub, onEvent, onStatus)

	return sub, nil
}

func (f *Feed) receive(ctx context.Context, sub *Subscription, onEvent domain.EventHandler, onStatus domain.StatusHandler) {
	defer close(sub.done)
	defer onStatus(domain.StatusClosed, nil)

	log := f.logger.With(logger.String("channel", sub.channel))
	status := domain.StatusConnecting
	wait := f.retryInterval

	for {
		msg, err := sub.pubsub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
				return
			}

			if status != domain.StatusErrored {
				status = domain.StatusErrored
				log.Warn("change subscription errored", logger.Error(err))
				onStatus(status, &domain.SubscriptionError{Channel: sub.channel, Err: err})
			}

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			// Exponential backoff with cap
			wait *= 2
			if wait > f.maxWait {
				wait = f.maxWait
			}
			continue
		}

		switch m := msg.(type) {
		case *redis.Subscription:
			if m.Kind != "subscribe" {
				continue
			}
			if status != domain.StatusActive {
				if status == domain.StatusErrored {
					log.Info("change subscription recovered")
				} else {
					log.Debug("change subscription active")
				}
				status = domain.StatusActive
				wait = f.retryInterval
				onStatus(status, nil)
			}
		case *redis.Message:
			onEvent(Decode([]byte(m.Payload)))
		case *redis.Pong:
		default:
			log.Debugf("ignoring pubsub message of type %T", msg)
		}
	}
}

// Channel returns the subscribed channel name.
func (s *Subscription) Channel() string { return s.channel }

// Unsubscribe closes the listener and waits for its goroutine.
// No handler runs after it returns. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		_ = s.pubsub.Close()
	})
	<-s.done
}
