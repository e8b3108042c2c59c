package bridge

import (
	"context"
	"errors"

	"github.com/example/comm-relay/domain/notification"
	"github.com/example/comm-relay/events"
	"github.com/go-monolith/mono/pkg/types"
)

// NotificationStore persists notifications.
type NotificationStore interface {
	Create(ctx context.Context, n *notification.Notification) error
}

// Publisher hands mapped events to the in-process event bus.
type Publisher interface {
	NotificationCreated(ev events.NotificationCreatedEvent) error
	AgreementStatusChanged(ev events.AgreementStatusChangedEvent) error
}

// Processor turns envelopes into persisted notifications.
type Processor struct {
	mapper    *Mapper
	store     NotificationStore
	publisher Publisher
	logger    types.Logger
}

// NewProcessor creates a processor.
func NewProcessor(mapper *Mapper, store NotificationStore, publisher Publisher, logger types.Logger) *Processor {
	return &Processor{
		mapper:    mapper,
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// Handle maps env and persists one notification per target before
// publishing it. It returns the number of notifications persisted.
// Malformed envelopes are logged and dropped.
func (p *Processor) Handle(ctx context.Context, env Envelope) int {
	res, err := p.mapper.Map(env)
	if err != nil {
		if errors.Is(err, ErrUnknownChannel) || errors.Is(err, ErrMalformedPayload) {
			p.logger.Warn("Dropping envelope", "channel", env.Channel, "error", err)
		} else {
			p.logger.Error("Failed to map envelope", "channel", env.Channel, "error", err)
		}
		return 0
	}

	created := 0
	for _, t := range res.Targets {
		n := &notification.Notification{
			UserID:  t.UserID,
			Message: t.Message,
			Link:    t.Link,
		}
		if err := p.store.Create(ctx, n); err != nil {
			p.logger.Error("Failed to persist notification", "user", t.UserID, "channel", env.Channel, "error", err)
			continue
		}
		created++

		if err := p.publisher.NotificationCreated(events.NotificationCreatedEvent{
			NotificationID: n.ID,
			UserID:         n.UserID,
			Message:        n.Message,
			Link:           n.Link,
			IsRead:         n.IsRead,
			CreatedAt:      n.CreatedAt,
		}); err != nil {
			p.logger.Error("Failed to publish notification", "notification", n.ID, "error", err)
		}
	}

	if res.StatusChange != nil {
		if err := p.publisher.AgreementStatusChanged(*res.StatusChange); err != nil {
			p.logger.Error("Failed to publish agreement status", "status", res.StatusChange.Status, "error", err)
		}
	}

	return created
}

// Run handles envelopes from in until it is closed or ctx is done.
func (p *Processor) Run(ctx context.Context, in <-chan Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-in:
			if !ok {
				return
			}
			p.Handle(ctx, env)
		}
	}
}
