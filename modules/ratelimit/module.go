package ratelimit

import (
	"context"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

// Module throttles per-user actions. When Redis cannot be reached the
// check fails open.
type Module struct {
	client  redis.UniversalClient
	limiter *Limiter
	limit   int
	window  time.Duration
	logger  types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// DefaultWindow replaces a window too short for the limiter.
const DefaultWindow = 10 * time.Second

// NewModule creates a module allowing limit actions per user and window.
// A non-positive limit disables throttling. A window under one millisecond
// is replaced by DefaultWindow.
func NewModule(client redis.UniversalClient, limit int, window time.Duration, logger types.Logger) *Module {
	if limit > 0 && window.Milliseconds() <= 0 {
		logger.Warn("Invalid rate limit window, using default",
			"window", window.String(), "default", DefaultWindow.String())
		window = DefaultWindow
	}
	return &Module{
		client:  client,
		limiter: NewLimiter(client, "ratelimit:send:"),
		limit:   limit,
		window:  window,
		logger:  logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "ratelimit"
}

// Start checks Redis once. An unreachable server is not fatal.
func (m *Module) Start(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := m.client.Ping(pingCtx).Err(); err != nil {
		m.logger.Warn("Redis unreachable, send throttling fails open", "error", err)
	}
	m.logger.Info("Rate limit module started", "limit", m.limit, "window", m.window.String())
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Rate limit module stopped")
	return nil
}

// Health reports Redis reachability. Throttling still works without it.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "redis unreachable",
			Details: map[string]any{"error": err.Error()},
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"limit": m.limit, "window": m.window.String()},
	}
}

// Allow reports whether userID may send another message.
func (m *Module) Allow(ctx context.Context, userID string) bool {
	if m.limit <= 0 {
		return true
	}
	res, err := m.limiter.Allow(ctx, userID, m.limit, m.window)
	if err != nil {
		m.logger.Warn("Rate limit check failed, allowing", "user", userID, "error", err)
		return true
	}
	if !res.Allowed {
		m.logger.Debug("Send rate limited", "user", userID, "reset_at", res.ResetAt)
	}
	return res.Allowed
}
