package api

import (
	"errors"

	"github.com/example/comm-relay/domain/exchange"
	"github.com/example/comm-relay/domain/message"
	"github.com/example/comm-relay/domain/notification"
	"github.com/example/comm-relay/modules/push"
	"github.com/go-monolith/mono"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// setupRoutes configures all HTTP routes.
func (m *Module) setupRoutes(app *fiber.App) {
	app.Get("/health", m.healthHandler)

	// WebSocket endpoint, authenticated before the upgrade.
	app.Use("/ws", AuthMiddleware(m.deps.Verifier), func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(m.handleWebSocket))

	v1 := app.Group("/api/v1", AuthMiddleware(m.deps.Verifier))
	v1.Get("/conversations/:id/messages", m.getConversationMessages)
	v1.Get("/notifications", m.listNotifications)
	v1.Patch("/notifications/read", m.markNotificationsRead)
	v1.Post("/push/subscribe", m.subscribePush)
}

// healthHandler handles GET /health.
func (m *Module) healthHandler(c *fiber.Ctx) error {
	resp := HealthResponse{
		Status:  "healthy",
		Modules: make(map[string]mono.HealthStatus, len(m.deps.HealthChecks)),
	}
	for _, hc := range m.deps.HealthChecks {
		status := hc.Health(c.UserContext())
		resp.Modules[hc.Name()] = status
		if !status.Healthy {
			resp.Status = "degraded"
		}
	}

	if resp.Status != "healthy" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}

// getConversationMessages handles GET /api/v1/conversations/:id/messages.
func (m *Module) getConversationMessages(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUser(c)
	conversationID := c.Params("id")

	ex, err := m.deps.Exchanges.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, exchange.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "conversation not found")
		}
		m.logger.Error("Failed to load conversation", "conversation", conversationID, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load conversation")
	}
	if !ex.IsMember(userID) {
		return fiber.NewError(fiber.StatusForbidden, "not a member of this conversation")
	}

	messages, err := m.deps.Messages.ListByConversation(ctx, conversationID)
	if err != nil {
		m.logger.Error("Failed to list messages", "conversation", conversationID, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to list messages")
	}

	senders := make([]string, 0, 2)
	seen := make(map[string]bool, 2)
	for _, msg := range messages {
		if !seen[msg.Sender] {
			seen[msg.Sender] = true
			senders = append(senders, msg.Sender)
		}
	}
	authors, err := m.deps.Users.FindByIDs(ctx, senders)
	if err != nil {
		// History is still useful without display names.
		m.logger.Warn("Failed to load message authors", "conversation", conversationID, "error", err)
	}

	resp := MessageHistoryResponse{
		ConversationID: conversationID,
		Messages:       make([]message.View, 0, len(messages)),
	}
	for _, msg := range messages {
		resp.Messages = append(resp.Messages, message.NewView(msg, authors[msg.Sender]))
	}
	return c.JSON(resp)
}

// listNotifications handles GET /api/v1/notifications.
func (m *Module) listNotifications(c *fiber.Ctx) error {
	userID := currentUser(c)

	list, err := m.deps.Notifications.ListRecent(c.UserContext(), userID, notification.DefaultListLimit)
	if err != nil {
		m.logger.Error("Failed to list notifications", "user", userID, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to list notifications")
	}
	if list == nil {
		list = []*notification.Notification{}
	}
	return c.JSON(NotificationListResponse{Notifications: list})
}

// markNotificationsRead handles PATCH /api/v1/notifications/read.
func (m *Module) markNotificationsRead(c *fiber.Ctx) error {
	userID := currentUser(c)

	n, err := m.deps.Notifications.MarkAllRead(c.UserContext(), userID)
	if err != nil {
		m.logger.Error("Failed to mark notifications read", "user", userID, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to mark notifications read")
	}
	return c.JSON(MarkReadResponse{Updated: n})
}

// subscribePush handles POST /api/v1/push/subscribe.
func (m *Module) subscribePush(c *fiber.Ctx) error {
	userID := currentUser(c)

	var reg push.Registration
	if err := c.BodyParser(&reg); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := m.deps.Push.Register(c.UserContext(), userID, reg); err != nil {
		if errors.Is(err, push.ErrInvalidRegistration) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		m.logger.Error("Failed to store push subscription", "user", userID, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to store push subscription")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "subscribed"})
}
