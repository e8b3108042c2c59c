package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

const (
	// sendBufferSize is the number of frames queued per client before the
	// client is considered too slow and disconnected.
	sendBufferSize = 64
	writeWait      = 10 * time.Second
)

var (
	// ErrClientClosed is returned when writing to a client that has been closed.
	ErrClientClosed = errors.New("client closed")
	// ErrSendBufferFull is returned when a client's queue overflows.
	ErrSendBufferFull = errors.New("client send buffer full")
)

// Conn is the write side of a client connection.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Frame is the JSON envelope written to clients.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// UserGroup returns the group every connection of userID belongs to.
func UserGroup(userID string) string {
	return "user:" + userID
}

// ConversationGroup returns the group for a conversation.
func ConversationGroup(conversationID string) string {
	return "conv:" + conversationID
}

// Client is one live connection of an authenticated user. Frames are queued
// and written by a dedicated goroutine, so a slow reader never blocks the
// caller.
type Client struct {
	ID     string
	UserID string

	conn   Conn
	send   chan []byte
	done   chan struct{}
	mu     sync.Mutex // guards closed and sends on send
	closed bool
	groups map[string]struct{} // guarded by Hub.mu
}

// NewClient wraps conn for userID with a fresh client ID and starts its
// writer. Close must be called once the connection is finished.
func NewClient(userID string, conn Conn) *Client {
	c := &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		groups: make(map[string]struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *Client) writeLoop() {
	defer close(c.done)

	failed := false
	for data := range c.send {
		if failed {
			continue
		}
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err == nil {
			err = c.conn.WriteMessage(websocket.TextMessage, data)
			if err == nil {
				continue
			}
		}
		// A failed or timed-out write leaves the socket unusable; closing it
		// ends the reader, which unregisters the client.
		failed = true
		_ = c.conn.Close()
	}
}

func (c *Client) enqueue(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		c.closed = true
		close(c.send)
		_ = c.conn.Close()
		return ErrSendBufferFull
	}
}

// Send queues a single frame for this client only.
func (c *Client) Send(event string, payload any) error {
	data, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

// Close stops the writer and waits for it to exit. No write reaches the
// connection after Close returns. Close is idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
	<-c.done
}

// Hub tracks connected clients and their broadcast groups. A client may
// belong to any number of groups and a group may hold several clients of
// the same user.
type Hub struct {
	clients map[string]*Client
	groups  map[string]map[string]*Client // group -> clientID -> client
	done    chan struct{}
	logger  types.Logger
	mu      sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub(logger types.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		groups:  make(map[string]map[string]*Client),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Run blocks until ctx is cancelled, then closes every client connection.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.logger.Info("Hub shutting down", "clients", h.ClientCount())
	h.closeAllClients()
	close(h.done)
}

// Wait blocks until Run has returned.
func (h *Hub) Wait() {
	<-h.done
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.groups = make(map[string]map[string]*Client)
	h.mu.Unlock()

	for _, client := range clients {
		_ = client.conn.Close()
		client.Close()
	}
}

// Register adds client to the hub and to its user group.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	h.joinLocked(client, UserGroup(client.UserID))
	h.logger.Debug("Client registered", "client", client.ID, "user", client.UserID)
}

// Unregister removes client from the hub and from every group it joined,
// then closes it. Once Unregister returns nothing is written to the
// client's connection, even by an Emit that selected it earlier.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		for group := range client.groups {
			h.leaveLocked(client, group)
		}
		delete(h.clients, client.ID)
		h.logger.Debug("Client unregistered", "client", client.ID, "user", client.UserID)
	}
	h.mu.Unlock()

	client.Close()
}

// Join adds a registered client to group. Joining twice has no further effect.
// It reports whether the client is known to the hub.
func (h *Hub) Join(clientID, group string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return false
	}
	h.joinLocked(client, group)
	return true
}

// Leave removes a client from group.
func (h *Hub) Leave(clientID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, ok := h.clients[clientID]; ok {
		h.leaveLocked(client, group)
	}
}

func (h *Hub) joinLocked(client *Client, group string) {
	members := h.groups[group]
	if members == nil {
		members = make(map[string]*Client)
		h.groups[group] = members
	}
	members[client.ID] = client
	client.groups[group] = struct{}{}
}

func (h *Hub) leaveLocked(client *Client, group string) {
	delete(client.groups, group)
	if members, ok := h.groups[group]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}

// Emit queues event for every client that is a member of group at the time
// of the call and returns how many clients accepted it. Emit never waits on
// a connection.
func (h *Hub) Emit(group, event string, payload any) int {
	data, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		h.logger.Error("Failed to marshal frame", "event", event, "error", err)
		return 0
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.groups[group]))
	for _, client := range h.groups[group] {
		members = append(members, client)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, client := range members {
		if err := client.enqueue(data); err != nil {
			h.logger.Warn("Failed to send to client", "client", client.ID, "event", event, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// IsOnline reports whether userID has at least one live connection.
func (h *Hub) IsOnline(userID string) bool {
	return h.GroupSize(UserGroup(userID)) > 0
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GroupSize returns the number of clients in group.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// GroupCount returns the number of non-empty groups.
func (h *Hub) GroupCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups)
}
