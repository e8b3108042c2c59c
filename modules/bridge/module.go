package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/example/comm-relay/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

var errNoEventBus = errors.New("event bus not set")

// Module bridges pub/sub channels of the API process into notifications.
type Module struct {
	subscriber Subscriber
	processor  *Processor
	channels   []string
	eventBus   mono.EventBus
	logger     types.Logger

	cancel context.CancelFunc
	done   sync.WaitGroup
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the bridge module. When channels is empty every mapped
// channel is subscribed.
func NewModule(subscriber Subscriber, store NotificationStore, channels []string, logger types.Logger) *Module {
	mapper := NewMapper()
	if len(channels) == 0 {
		channels = mapper.Channels()
	}
	m := &Module{
		subscriber: subscriber,
		channels:   channels,
		logger:     logger,
	}
	m.processor = NewProcessor(mapper, store, busPublisher{m}, logger)
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "bridge"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.NotificationCreatedV1.ToBase(),
		events.AgreementStatusChangedV1.ToBase(),
	}
}

// Start subscribes and processes envelopes until Stop.
func (m *Module) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	in, err := m.subscriber.Subscribe(ctx, m.channels...)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to %v: %w", m.channels, err)
	}
	m.cancel = cancel

	m.done.Add(1)
	go func() {
		defer m.done.Done()
		m.processor.Run(ctx, in)
	}()

	m.logger.Info("Bridge started", "channels", m.channels)
	return nil
}

// Stop cancels the subscription and waits for in-flight envelopes.
func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	if err := m.subscriber.Close(); err != nil {
		m.logger.Warn("Failed to close subscriber", "error", err)
	}
	m.done.Wait()
	m.logger.Info("Bridge stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.eventBus == nil {
		return mono.HealthStatus{Healthy: false, Message: errNoEventBus.Error()}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"channels": m.channels},
	}
}

// Processor returns the envelope processor.
func (m *Module) Processor() *Processor {
	return m.processor
}

type busPublisher struct {
	m *Module
}

func (b busPublisher) NotificationCreated(ev events.NotificationCreatedEvent) error {
	if b.m.eventBus == nil {
		return errNoEventBus
	}
	return events.NotificationCreatedV1.Publish(b.m.eventBus, ev, nil)
}

func (b busPublisher) AgreementStatusChanged(ev events.AgreementStatusChangedEvent) error {
	if b.m.eventBus == nil {
		return errNoEventBus
	}
	return events.AgreementStatusChangedV1.Publish(b.m.eventBus, ev, nil)
}
