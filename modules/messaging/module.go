package messaging

import (
	"context"
	"errors"

	"github.com/example/comm-relay/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

var errNoEventBus = errors.New("event bus not set")

// Module hosts the messaging service and publishes push requests.
type Module struct {
	service  *Service
	eventBus mono.EventBus
	logger   types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module              = (*Module)(nil)
	_ mono.EventBusAwareModule = (*Module)(nil)
	_ mono.EventEmitterModule  = (*Module)(nil)
)

// NewModule creates the messaging module. Push requests go out on the event bus.
func NewModule(exchanges ExchangeFinder, messages MessageStore, users UserFinder, broadcaster Broadcaster, logger types.Logger) *Module {
	m := &Module{logger: logger}
	m.service = NewService(exchanges, messages, users, broadcaster, busPushRequester{m}, logger)
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "messaging"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.PushRequestedV1.ToBase(),
	}
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	if m.eventBus == nil {
		m.logger.Warn("Event bus not set, push requests will be dropped")
	}
	m.logger.Info("Messaging module started")
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Messaging module stopped")
	return nil
}

// Service returns the messaging service.
func (m *Module) Service() *Service {
	return m.service
}

type busPushRequester struct {
	m *Module
}

func (b busPushRequester) RequestPush(_ context.Context, userID string, payload PushPayload) error {
	if b.m.eventBus == nil {
		return errNoEventBus
	}
	return events.PushRequestedV1.Publish(b.m.eventBus, events.PushRequestedEvent{
		UserID: userID,
		Title:  payload.Title,
		Body:   payload.Body,
		URL:    payload.URL,
	}, nil)
}
