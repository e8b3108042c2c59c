package push

import (
	"context"
	"fmt"
	"time"

	"github.com/example/comm-relay/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

const notifyTimeout = 15 * time.Second

// Module consumes push requests from the event bus.
type Module struct {
	service *Service
	logger  types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the push module.
func NewModule(service *Service, logger types.Logger) *Module {
	return &Module{service: service, logger: logger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "push"
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	if m.service.dispatcher == nil {
		m.logger.Warn("VAPID keys not configured, push delivery disabled")
	}
	m.logger.Info("Push module started")
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Push module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"enabled": m.service.dispatcher != nil},
	}
}

// RegisterEventConsumers subscribes to push requests.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.PushRequestedV1, m.handlePushRequested, m,
	); err != nil {
		return fmt.Errorf("failed to register PushRequested consumer: %w", err)
	}
	return nil
}

// Always returns nil: a failed push is not redelivered.
func (m *Module) handlePushRequested(ctx context.Context, event events.PushRequestedEvent, _ *mono.Msg) error {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	outcome := m.service.Notify(ctx, event.UserID, Payload{
		Title: event.Title,
		Body:  event.Body,
		Data:  Data{URL: event.URL},
	})
	m.logger.Debug("Push request handled", "user", event.UserID, "outcome", outcome.String())
	return nil
}

// Service returns the push service.
func (m *Module) Service() *Service {
	return m.service
}
