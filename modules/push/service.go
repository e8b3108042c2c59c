package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	pushstore "github.com/example/comm-relay/domain/push"
	"github.com/go-monolith/mono/pkg/types"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// ErrInvalidRegistration is returned for malformed registration descriptors.
var ErrInvalidRegistration = errors.New("invalid push registration")

// Payload is the JSON document delivered to the service worker.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Data  Data   `json:"data"`
}

// Data carries the deep link opened when the notification is clicked.
type Data struct {
	URL string `json:"url"`
}

// Keys are the client's message encryption keys.
type Keys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Registration is the descriptor produced by PushManager.subscribe().
type Registration struct {
	Endpoint string `json:"endpoint"`
	Keys     Keys   `json:"keys"`
}

// Validate checks the descriptor.
func (r Registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Endpoint, validation.Required, is.URL),
		validation.Field(&r.Keys),
	)
}

// Validate checks both keys are present.
func (k Keys) Validate() error {
	return validation.ValidateStruct(&k,
		validation.Field(&k.P256dh, validation.Required),
		validation.Field(&k.Auth, validation.Required),
	)
}

// SubscriptionStore persists at most one subscription per user.
type SubscriptionStore interface {
	Upsert(ctx context.Context, s *pushstore.Subscription) error
	FindByUser(ctx context.Context, userID string) (*pushstore.Subscription, error)
	DeleteByUser(ctx context.Context, userID string) error
}

// Dispatcher sends an encrypted push message and reports the push
// service's HTTP status code.
type Dispatcher interface {
	Dispatch(ctx context.Context, sub *pushstore.Subscription, payload []byte) (int, error)
}

// Outcome describes what Notify did.
type Outcome int

const (
	OutcomeDelivered Outcome = iota
	OutcomeNoSubscription
	OutcomeGone
	OutcomeFailed
	OutcomeDisabled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeNoSubscription:
		return "no_subscription"
	case OutcomeGone:
		return "gone"
	case OutcomeFailed:
		return "failed"
	case OutcomeDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Service delivers best-effort Web Push messages.
type Service struct {
	store      SubscriptionStore
	dispatcher Dispatcher
	logger     types.Logger
}

// NewService creates a push service. A nil dispatcher disables delivery.
func NewService(store SubscriptionStore, dispatcher Dispatcher, logger types.Logger) *Service {
	return &Service{store: store, dispatcher: dispatcher, logger: logger}
}

// Register stores reg as the only push endpoint of userID.
func (s *Service) Register(ctx context.Context, userID string, reg Registration) error {
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRegistration, err)
	}
	return s.store.Upsert(ctx, &pushstore.Subscription{
		UserID:   userID,
		Endpoint: reg.Endpoint,
		P256dh:   reg.Keys.P256dh,
		Auth:     reg.Keys.Auth,
	})
}

// Notify sends payload to the registered endpoint of userID. Failures are
// logged, never returned; an endpoint reported as gone is deregistered.
func (s *Service) Notify(ctx context.Context, userID string, payload Payload) Outcome {
	if s.dispatcher == nil {
		return OutcomeDisabled
	}

	sub, err := s.store.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pushstore.ErrNotFound) {
			return OutcomeNoSubscription
		}
		s.logger.Error("Failed to load push subscription", "user", userID, "error", err)
		return OutcomeFailed
	}

	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("Failed to encode push payload", "user", userID, "error", err)
		return OutcomeFailed
	}

	status, err := s.dispatcher.Dispatch(ctx, sub, body)
	if err != nil {
		s.logger.Warn("Push delivery failed", "user", userID, "error", err)
		return OutcomeFailed
	}

	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		if err := s.store.DeleteByUser(ctx, userID); err != nil {
			s.logger.Error("Failed to delete expired push subscription", "user", userID, "error", err)
		} else {
			s.logger.Info("Deleted expired push subscription", "user", userID, "status", status)
		}
		return OutcomeGone
	case status >= 200 && status < 300:
		return OutcomeDelivered
	default:
		s.logger.Warn("Push service rejected message", "user", userID, "status", status)
		return OutcomeFailed
	}
}
