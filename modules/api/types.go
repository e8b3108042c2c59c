package api

import (
	"context"
	"encoding/json"

	"github.com/example/comm-relay/domain/exchange"
	"github.com/example/comm-relay/domain/message"
	"github.com/example/comm-relay/domain/notification"
	"github.com/example/comm-relay/domain/user"
	"github.com/example/comm-relay/modules/auth"
	"github.com/example/comm-relay/modules/hub"
	"github.com/example/comm-relay/modules/push"
	"github.com/go-monolith/mono"
)

// Client-to-server WebSocket events.
const (
	EventJoinConversation  = "join-conversation"
	EventLeaveConversation = "leave-conversation"
	EventSendMessage       = "send-message"
	EventCallOffer         = "call-offer"
	EventCallAnswer        = "call-answer"
	EventIceCandidate      = "ice-candidate"
	EventHangup            = "hangup"

	// EventError reports a failed send-message or an unreadable frame to the caller.
	EventError = "error"
)

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// ClientRegistry tracks live connections.
type ClientRegistry interface {
	Register(client *hub.Client)
	Unregister(client *hub.Client)
	ClientCount() int
}

// ConversationService joins conversations and sends messages.
type ConversationService interface {
	JoinConversation(clientID, conversationID string) bool
	LeaveConversation(clientID, conversationID string)
	Send(ctx context.Context, senderID, conversationID, content string) (*message.View, error)
}

// CallRelay forwards call-setup envelopes.
type CallRelay interface {
	Offer(ctx context.Context, callerID, conversationID string, offer json.RawMessage) bool
	Answer(ctx context.Context, callerID, conversationID string, answer json.RawMessage) bool
	IceCandidate(ctx context.Context, callerID, conversationID string, candidate json.RawMessage) bool
	Hangup(ctx context.Context, callerID, conversationID string) bool
}

// SendLimiter throttles send-message per user.
type SendLimiter interface {
	Allow(ctx context.Context, userID string) bool
}

// ExchangeFinder resolves conversations.
type ExchangeFinder interface {
	FindByID(ctx context.Context, id string) (*exchange.Exchange, error)
}

// MessageLister reads conversation history.
type MessageLister interface {
	ListByConversation(ctx context.Context, conversationID string) ([]*message.Message, error)
}

// UserFinder resolves display fields for many users at once.
type UserFinder interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]*user.User, error)
}

// NotificationStore reads and acknowledges notifications.
type NotificationStore interface {
	ListRecent(ctx context.Context, userID string, limit int) ([]*notification.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// PushRegistrar stores push registrations.
type PushRegistrar interface {
	Register(ctx context.Context, userID string, reg push.Registration) error
}

// HealthChecker reports the health of one module.
type HealthChecker interface {
	Name() string
	Health(ctx context.Context) mono.HealthStatus
}

// Deps are the services the API module serves.
type Deps struct {
	Verifier      TokenVerifier
	Clients       ClientRegistry
	Messaging     ConversationService
	Signaling     CallRelay
	Limiter       SendLimiter
	Exchanges     ExchangeFinder
	Messages      MessageLister
	Users         UserFinder
	Notifications NotificationStore
	Push          PushRegistrar
	HealthChecks  []HealthChecker
}

// inboundFrame is one client-to-server WebSocket frame.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// conversationRef is the data of join, leave and hangup frames. The bare
// conversation ID string is accepted too.
type conversationRef struct {
	ConversationID string `json:"conversationId"`
}

type sendMessageData struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

type offerData struct {
	ConversationID string          `json:"conversationId"`
	Offer          json.RawMessage `json:"offer"`
}

type answerData struct {
	ConversationID string          `json:"conversationId"`
	Answer         json.RawMessage `json:"answer"`
}

type candidateData struct {
	ConversationID string          `json:"conversationId"`
	Candidate      json.RawMessage `json:"candidate"`
}

// ErrorFrame is the data of an error event.
type ErrorFrame struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

// MessageHistoryResponse is the API response for a conversation history.
type MessageHistoryResponse struct {
	ConversationID string         `json:"conversationId"`
	Messages       []message.View `json:"messages"`
}

// NotificationListResponse is the API response for recent notifications.
type NotificationListResponse struct {
	Notifications []*notification.Notification `json:"notifications"`
}

// MarkReadResponse is the API response for marking notifications read.
type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string                       `json:"status"`
	Modules map[string]mono.HealthStatus `json:"modules,omitempty"`
}
