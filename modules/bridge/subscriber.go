package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coregx/pubsub/retry"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

// ErrSubscriberClosed is returned by Subscribe after Close.
var ErrSubscriberClosed = errors.New("subscriber closed")

// Subscriber delivers envelopes from a pub/sub system. The returned channel
// is closed once ctx is done or the subscriber is closed.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) (<-chan Envelope, error)
	Close() error
}

// DefaultBackoff is the reconnect schedule used when none is configured.
func DefaultBackoff() retry.Strategy {
	return retry.Strategy{
		BaseDelay:       500 * time.Millisecond,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
	}
}

// RedisSubscriber subscribes to Redis pub/sub channels and resubscribes
// with exponential backoff whenever the connection is lost.
type RedisSubscriber struct {
	client  redis.UniversalClient
	backoff retry.Strategy
	logger  types.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// NewRedisSubscriber creates a subscriber on client. The client is not
// closed by Close.
func NewRedisSubscriber(client redis.UniversalClient, backoff retry.Strategy, logger types.Logger) *RedisSubscriber {
	if backoff.ExponentialBase < 1 {
		backoff.ExponentialBase = 2.0
	}
	if backoff.MaxDelay < backoff.BaseDelay {
		backoff.MaxDelay = backoff.BaseDelay
	}
	return &RedisSubscriber{
		client:  client,
		backoff: backoff,
		logger:  logger,
	}
}

// Subscribe starts receiving from channels in the background.
func (s *RedisSubscriber) Subscribe(ctx context.Context, channels ...string) (<-chan Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSubscriberClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	prev := s.cancel
	s.cancel = func() {
		if prev != nil {
			prev()
		}
		cancel()
	}

	out := make(chan Envelope)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(out)
		s.run(ctx, channels, out)
	}()
	return out, nil
}

// Close stops every subscription and waits for them to exit.
func (s *RedisSubscriber) Close() error {
	s.mu.Lock()
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	return nil
}

// reconnectSchedule yields backoff delays for consecutive failures and
// starts over from the base delay after a successful subscription.
type reconnectSchedule struct {
	strategy retry.Strategy
	attempt  int
}

func (r *reconnectSchedule) next() time.Duration {
	delay := r.strategy.CalculateRetryDelay(r.attempt)
	if delay < r.strategy.MaxDelay {
		r.attempt++
	}
	return delay
}

func (r *reconnectSchedule) reset() {
	r.attempt = 0
}

func (s *RedisSubscriber) run(ctx context.Context, channels []string, out chan<- Envelope) {
	schedule := &reconnectSchedule{strategy: s.backoff}
	for {
		err := s.session(ctx, channels, out, schedule.reset)
		if ctx.Err() != nil {
			return
		}

		delay := schedule.next()
		s.logger.Warn("Redis subscription lost, reconnecting",
			"channels", channels, "error", err, "retry_in", delay.String())

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session holds one subscription until it fails or ctx is done.
func (s *RedisSubscriber) session(ctx context.Context, channels []string, out chan<- Envelope, connected func()) error {
	ps := s.client.Subscribe(ctx, channels...)
	defer ps.Close()

	// The first reply confirms the subscription.
	if _, err := ps.Receive(ctx); err != nil {
		return err
	}
	connected()
	s.logger.Info("Subscribed to Redis channels", "channels", channels)

	for {
		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		select {
		case out <- Envelope{Channel: msg.Channel, Payload: json.RawMessage(msg.Payload)}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
