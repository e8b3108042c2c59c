package hub

import (
	"context"
	"fmt"

	"github.com/example/comm-relay/domain/notification"
	"github.com/example/comm-relay/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Server-to-client event names emitted by the hub module.
const (
	EventNewNotification        = "new-notification"
	EventAgreementStatusUpdated = "agreement-status-updated"
)

// Module owns the hub and delivers bridge events to user groups.
type Module struct {
	hub       *Hub
	cancelHub context.CancelFunc
	logger    types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new hub module.
func NewModule(logger types.Logger) *Module {
	return &Module{
		hub:    NewHub(logger),
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "hub"
}

// Start runs the hub until Stop.
func (m *Module) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelHub = cancel
	go m.hub.Run(ctx)
	m.logger.Info("Hub started")
	return nil
}

// Stop closes every connection.
func (m *Module) Stop(_ context.Context) error {
	clientCount := m.hub.ClientCount()
	if m.cancelHub != nil {
		m.cancelHub()
		m.hub.Wait()
	}
	m.logger.Info("Hub stopped", "clients", clientCount)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
			"groups":            m.hub.GroupCount(),
		},
	}
}

// RegisterEventConsumers subscribes to bridge events.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.NotificationCreatedV1, m.handleNotificationCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register NotificationCreated consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.AgreementStatusChangedV1, m.handleAgreementStatusChanged, m,
	); err != nil {
		return fmt.Errorf("failed to register AgreementStatusChanged consumer: %w", err)
	}

	m.logger.Info("Registered event consumers", "events", "NotificationCreated, AgreementStatusChanged")
	return nil
}

func (m *Module) handleNotificationCreated(_ context.Context, event events.NotificationCreatedEvent, _ *mono.Msg) error {
	n := notification.Notification{
		ID:        event.NotificationID,
		UserID:    event.UserID,
		Message:   event.Message,
		IsRead:    event.IsRead,
		Link:      event.Link,
		CreatedAt: event.CreatedAt,
	}
	delivered := m.hub.Emit(UserGroup(event.UserID), EventNewNotification, n)
	m.logger.Debug("Delivered notification", "user", event.UserID, "connections", delivered)
	return nil
}

func (m *Module) handleAgreementStatusChanged(_ context.Context, event events.AgreementStatusChangedEvent, _ *mono.Msg) error {
	for _, userID := range []string{event.ProposerID, event.ReceiverID} {
		if userID == "" {
			continue
		}
		m.hub.Emit(UserGroup(userID), EventAgreementStatusUpdated, event.Agreement)
	}
	return nil
}

// GetHub returns the hub for the modules that register and address clients.
func (m *Module) GetHub() *Hub {
	return m.hub
}
