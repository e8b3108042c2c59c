package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/example/comm-relay/modules/hub"
	fastws "github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wireFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// serve runs the app on a loopback listener and returns the /ws URL.
func serve(t *testing.T, env *testEnv) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = env.app.Listener(ln) }()
	t.Cleanup(func() { _ = env.app.Shutdown() })

	return "ws://" + ln.Addr().String() + "/ws"
}

func dial(t *testing.T, url, userID string) *fastws.Conn {
	t.Helper()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+signToken(t, userID, time.Hour))
	conn, resp, err := fastws.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *fastws.Conn, event string, data any) {
	t.Helper()

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(wireFrame{Event: event, Data: raw}))
}

func receive(t *testing.T, conn *fastws.Conn) wireFrame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f wireFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocket_RejectsWithoutToken(t *testing.T) {
	env := setupTestEnv(t)
	url := serve(t, env)

	_, resp, err := fastws.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocket_ChatAndSignaling(t *testing.T) {
	env := setupTestEnv(t)
	url := serve(t, env)

	ada := dial(t, url, "user1")
	bob := dial(t, url, "user2")
	waitFor(t, func() bool { return env.hub.ClientCount() == 2 })

	send(t, ada, EventJoinConversation, "X")
	send(t, bob, EventJoinConversation, map[string]string{"conversationId": "X"})
	waitFor(t, func() bool { return env.hub.GroupSize(hub.ConversationGroup("X")) == 2 })

	send(t, ada, EventSendMessage, map[string]string{"conversationId": "X", "content": "hi"})

	for _, conn := range []*fastws.Conn{ada, bob} {
		f := receive(t, conn)
		require.Equal(t, "new-message", f.Event)

		var view struct {
			Content string `json:"content"`
			Sender  struct {
				ID       string `json:"id"`
				FullName string `json:"fullName"`
			} `json:"sender"`
			Receiver string `json:"receiver"`
		}
		require.NoError(t, json.Unmarshal(f.Data, &view))
		assert.Equal(t, "hi", view.Content)
		assert.Equal(t, "user1", view.Sender.ID)
		assert.Equal(t, "Ada Lovelace", view.Sender.FullName)
		assert.Equal(t, "user2", view.Receiver)
	}

	send(t, ada, EventCallOffer, map[string]any{
		"conversationId": "X",
		"offer":          map[string]string{"type": "offer", "sdp": "v=0"},
	})

	f := receive(t, bob)
	require.Equal(t, "offer-received", f.Event)
	var offer struct {
		Offer    map[string]string `json:"offer"`
		CallerID string            `json:"callerId"`
	}
	require.NoError(t, json.Unmarshal(f.Data, &offer))
	assert.Equal(t, "user1", offer.CallerID)
	assert.Equal(t, "offer", offer.Offer["type"])

	send(t, bob, EventHangup, map[string]string{"conversationId": "X"})
	assert.Equal(t, "hangup-received", receive(t, ada).Event)
}

func TestWebSocket_NonMemberIsSilent(t *testing.T) {
	env := setupTestEnv(t)
	url := serve(t, env)

	eve := dial(t, url, "user3")
	send(t, eve, EventJoinConversation, "X")
	send(t, eve, EventSendMessage, map[string]string{"conversationId": "X", "content": "sneaky"})
	send(t, eve, EventCallOffer, map[string]any{"conversationId": "X", "offer": map[string]string{"type": "offer"}})

	// Frames are handled in order, so the error reply marks the end of the sends above.
	require.NoError(t, eve.WriteMessage(fastws.TextMessage, []byte("not json")))
	f := receive(t, eve)
	assert.Equal(t, EventError, f.Event)

	stored, err := env.messages.ListByConversation(context.Background(), "X")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestWebSocket_SendErrors(t *testing.T) {
	env := setupTestEnv(t)
	url := serve(t, env)

	ada := dial(t, url, "user1")

	tests := []struct {
		name        string
		setup       func()
		data        any
		wantMessage string
	}{
		{
			name:        "empty content",
			data:        map[string]string{"conversationId": "X", "content": "   "},
			wantMessage: "invalid message content",
		},
		{
			name:        "missing conversation",
			data:        map[string]string{"content": "hi"},
			wantMessage: "malformed frame",
		},
		{
			name:        "rate limited",
			setup:       func() { env.limiter.setDenied("user1", true) },
			data:        map[string]string{"conversationId": "X", "content": "hi"},
			wantMessage: "rate limit exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			send(t, ada, EventSendMessage, tt.data)

			f := receive(t, ada)
			require.Equal(t, EventError, f.Event)
			var e ErrorFrame
			require.NoError(t, json.Unmarshal(f.Data, &e))
			assert.Equal(t, EventSendMessage, e.Event)
			assert.Equal(t, tt.wantMessage, e.Message)
		})
	}
}

func TestWebSocket_DisconnectLeavesGroups(t *testing.T) {
	env := setupTestEnv(t)
	url := serve(t, env)

	ada := dial(t, url, "user1")
	send(t, ada, EventJoinConversation, "X")
	waitFor(t, func() bool { return env.hub.GroupSize(hub.ConversationGroup("X")) == 1 })

	ada.Close()
	waitFor(t, func() bool { return env.hub.ClientCount() == 0 })
	assert.Zero(t, env.hub.GroupSize(hub.ConversationGroup("X")))
	assert.False(t, env.hub.IsOnline("user1"))
}

func TestConversationID(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    string
		wantErr bool
	}{
		{"bare string", `"X"`, "X", false},
		{"object", `{"conversationId":"X"}`, "X", false},
		{"empty string", `""`, "", true},
		{"null", `null`, "", true},
		{"missing field", `{"id":"X"}`, "", true},
		{"number", `42`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := conversationID(json.RawMessage(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("conversationID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("conversationID() = %q, want %q", got, tt.want)
			}
		})
	}
}
