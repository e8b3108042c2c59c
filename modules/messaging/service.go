package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/example/comm-relay/domain/exchange"
	"github.com/example/comm-relay/domain/message"
	"github.com/example/comm-relay/domain/user"
	"github.com/example/comm-relay/modules/hub"
	"github.com/go-monolith/mono/pkg/types"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// EventNewMessage is emitted to a conversation group for every stored message.
const EventNewMessage = "new-message"

// MaxContentLength bounds a single chat message in runes.
const MaxContentLength = 5000

var (
	// ErrInvalidContent is returned for empty or oversized message content.
	ErrInvalidContent = errors.New("invalid message content")
	// ErrPersistence is returned when the message could not be stored.
	ErrPersistence = errors.New("failed to store message")
)

// ExchangeFinder resolves conversation membership.
type ExchangeFinder interface {
	FindByID(ctx context.Context, id string) (*exchange.Exchange, error)
}

// MessageStore persists messages.
type MessageStore interface {
	Create(ctx context.Context, m *message.Message) error
}

// UserFinder resolves author display fields.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*user.User, error)
}

// Broadcaster manages group membership and fan-out.
type Broadcaster interface {
	Join(clientID, group string) bool
	Leave(clientID, group string)
	Emit(group, event string, payload any) int
}

// PushPayload is the Web Push content for a new message.
type PushPayload struct {
	Title string
	Body  string
	URL   string
}

// PushRequester hands a push off for asynchronous delivery.
type PushRequester interface {
	RequestPush(ctx context.Context, userID string, payload PushPayload) error
}

// Service implements conversation membership and message sending.
type Service struct {
	exchanges   ExchangeFinder
	messages    MessageStore
	users       UserFinder
	broadcaster Broadcaster
	push        PushRequester
	logger      types.Logger
	locks       *conversationLocks
}

// NewService creates a messaging service.
func NewService(
	exchanges ExchangeFinder,
	messages MessageStore,
	users UserFinder,
	broadcaster Broadcaster,
	push PushRequester,
	logger types.Logger,
) *Service {
	return &Service{
		exchanges:   exchanges,
		messages:    messages,
		users:       users,
		broadcaster: broadcaster,
		push:        push,
		logger:      logger,
		locks:       newConversationLocks(),
	}
}

// JoinConversation adds the connection to the conversation group. Membership
// is not checked here; Send enforces it.
func (s *Service) JoinConversation(clientID, conversationID string) bool {
	return s.broadcaster.Join(clientID, hub.ConversationGroup(conversationID))
}

// LeaveConversation removes the connection from the conversation group.
func (s *Service) LeaveConversation(clientID, conversationID string) {
	s.broadcaster.Leave(clientID, hub.ConversationGroup(conversationID))
}

// Send stores a message from senderID and broadcasts it to the conversation.
// A nil view with a nil error means the sender is not a member of an
// existing conversation and nothing happened.
func (s *Service) Send(ctx context.Context, senderID, conversationID, content string) (*message.View, error) {
	ex, err := s.exchanges.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, exchange.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	receiverID, ok := ex.Other(senderID)
	if !ok {
		s.logger.Debug("Dropped send from non-member", "user", senderID, "conversation", conversationID)
		return nil, nil
	}

	content, err = ValidateContent(content)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(conversationID)
	msg := &message.Message{
		Sender:       senderID,
		Receiver:     receiverID,
		Content:      content,
		Conversation: conversationID,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		unlock()
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	author := s.author(ctx, senderID)
	view := message.NewView(msg, author)
	s.broadcaster.Emit(hub.ConversationGroup(conversationID), EventNewMessage, view)
	unlock()

	s.requestPush(ctx, receiverID, author, &view)
	return &view, nil
}

func (s *Service) author(ctx context.Context, userID string) *user.User {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		s.logger.Warn("Failed to load message author", "user", userID, "error", err)
		return nil
	}
	return u
}

func (s *Service) requestPush(ctx context.Context, receiverID string, author *user.User, view *message.View) {
	title := "New message"
	if author != nil && author.FullName != "" {
		title = "New message from " + author.FullName
	}
	payload := PushPayload{
		Title: title,
		Body:  view.Content,
		URL:   "/exchange/" + view.Conversation,
	}
	if err := s.push.RequestPush(ctx, receiverID, payload); err != nil {
		s.logger.Warn("Failed to request push", "user", receiverID, "error", err)
	}
}

// ValidateContent trims content and checks its length.
func ValidateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if err := validation.Validate(content,
		validation.Required,
		validation.RuneLength(1, MaxContentLength),
	); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidContent, err)
	}
	return content, nil
}

// conversationLocks serializes persist-then-broadcast per conversation so
// that broadcast order matches storage order.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[string]*refLock)}
}

func (c *conversationLocks) lock(id string) func() {
	c.mu.Lock()
	l, ok := c.locks[id]
	if !ok {
		l = &refLock{}
		c.locks[id] = l
	}
	l.refs++
	c.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, id)
		}
		c.mu.Unlock()
	}
}
