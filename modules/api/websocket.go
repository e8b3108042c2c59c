package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/example/comm-relay/modules/hub"
	"github.com/example/comm-relay/modules/messaging"
	"github.com/gofiber/contrib/websocket"
)

// frameTimeout bounds the work done for a single inbound frame.
const frameTimeout = 10 * time.Second

var errMissingConversation = errors.New("conversationId is required")

// handleWebSocket serves one authenticated connection until it closes.
func (m *Module) handleWebSocket(c *websocket.Conn) {
	userID, _ := c.Locals(UserIDKey).(string)
	client := hub.NewClient(userID, c)
	// The connection is recycled by the upgrader once this handler returns.
	defer client.Close()

	m.deps.Clients.Register(client)
	defer m.deps.Clients.Unregister(client)
	m.logger.Info("WebSocket client connected", "client", client.ID, "user", userID)

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Info("WebSocket client disconnected", "client", client.ID, "user", userID)
			} else {
				m.logger.Debug("WebSocket read error", "client", client.ID, "error", err)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
			m.sendError(client, "", "malformed frame")
			continue
		}
		m.dispatch(client, frame)
	}
}

func (m *Module) dispatch(client *hub.Client, frame inboundFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), frameTimeout)
	defer cancel()

	var err error
	switch frame.Event {
	case EventJoinConversation:
		var id string
		if id, err = conversationID(frame.Data); err == nil {
			m.deps.Messaging.JoinConversation(client.ID, id)
		}
	case EventLeaveConversation:
		var id string
		if id, err = conversationID(frame.Data); err == nil {
			m.deps.Messaging.LeaveConversation(client.ID, id)
		}
	case EventSendMessage:
		m.handleSendMessage(ctx, client, frame.Data)
		return
	case EventCallOffer:
		var d offerData
		if err = decodeConversationFrame(frame.Data, &d, &d.ConversationID); err == nil {
			m.deps.Signaling.Offer(ctx, client.UserID, d.ConversationID, d.Offer)
		}
	case EventCallAnswer:
		var d answerData
		if err = decodeConversationFrame(frame.Data, &d, &d.ConversationID); err == nil {
			m.deps.Signaling.Answer(ctx, client.UserID, d.ConversationID, d.Answer)
		}
	case EventIceCandidate:
		var d candidateData
		if err = decodeConversationFrame(frame.Data, &d, &d.ConversationID); err == nil {
			m.deps.Signaling.IceCandidate(ctx, client.UserID, d.ConversationID, d.Candidate)
		}
	case EventHangup:
		var id string
		if id, err = conversationID(frame.Data); err == nil {
			m.deps.Signaling.Hangup(ctx, client.UserID, id)
		}
	default:
		m.logger.Debug("Ignoring unknown event", "client", client.ID, "event", frame.Event)
		return
	}

	if err != nil {
		m.sendError(client, frame.Event, "malformed frame")
	}
}

func (m *Module) handleSendMessage(ctx context.Context, client *hub.Client, data json.RawMessage) {
	var d sendMessageData
	if err := decodeConversationFrame(data, &d, &d.ConversationID); err != nil {
		m.sendError(client, EventSendMessage, "malformed frame")
		return
	}

	if m.deps.Limiter != nil && !m.deps.Limiter.Allow(ctx, client.UserID) {
		m.sendError(client, EventSendMessage, "rate limit exceeded")
		return
	}

	_, err := m.deps.Messaging.Send(ctx, client.UserID, d.ConversationID, d.Content)
	switch {
	case err == nil:
	case errors.Is(err, messaging.ErrInvalidContent):
		m.sendError(client, EventSendMessage, messaging.ErrInvalidContent.Error())
	default:
		m.logger.Error("Failed to send message", "user", client.UserID, "conversation", d.ConversationID, "error", err)
		m.sendError(client, EventSendMessage, messaging.ErrPersistence.Error())
	}
}

func (m *Module) sendError(client *hub.Client, event, message string) {
	if err := client.Send(EventError, ErrorFrame{Event: event, Message: message}); err != nil {
		m.logger.Debug("Failed to send error frame", "client", client.ID, "error", err)
	}
}

// conversationID reads a bare "id" string or {"conversationId": "id"}.
func conversationID(data json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		id = strings.TrimSpace(id)
		if id == "" {
			return "", errMissingConversation
		}
		return id, nil
	}

	var ref conversationRef
	if err := decodeConversationFrame(data, &ref, &ref.ConversationID); err != nil {
		return "", err
	}
	return ref.ConversationID, nil
}

// decodeConversationFrame decodes data into v and requires *id to be set.
func decodeConversationFrame(data json.RawMessage, v any, id *string) error {
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	if strings.TrimSpace(*id) == "" {
		return errMissingConversation
	}
	return nil
}
