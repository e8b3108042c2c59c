package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/example/comm-relay/domain/exchange"
	"github.com/example/comm-relay/domain/message"
	"github.com/example/comm-relay/domain/notification"
	pushstore "github.com/example/comm-relay/domain/push"
	"github.com/example/comm-relay/domain/user"
	"github.com/example/comm-relay/modules/auth"
	"github.com/example/comm-relay/modules/hub"
	"github.com/example/comm-relay/modules/messaging"
	"github.com/example/comm-relay/modules/push"
	"github.com/example/comm-relay/modules/signaling"
	"github.com/example/comm-relay/modules/store"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any) {}
func (m *mockLogger) Info(_ string, _ ...any)  {}
func (m *mockLogger) Warn(_ string, _ ...any)  {}
func (m *mockLogger) Error(_ string, _ ...any) {}
func (m *mockLogger) With(_ ...any) types.Logger {
	return m
}
func (m *mockLogger) WithModule(_ string) types.Logger {
	return m
}
func (m *mockLogger) WithError(_ error) types.Logger {
	return m
}

type nopPush struct{}

func (nopPush) RequestPush(context.Context, string, messaging.PushPayload) error { return nil }

// fakeLimiter denies the users in deny.
type fakeLimiter struct {
	mu   sync.Mutex
	deny map[string]bool
}

func (l *fakeLimiter) Allow(_ context.Context, userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.deny[userID]
}

func (l *fakeLimiter) setDenied(userID string, denied bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deny[userID] = denied
}

type fakeHealth struct {
	name    string
	healthy bool
}

func (f fakeHealth) Name() string { return f.name }

func (f fakeHealth) Health(context.Context) mono.HealthStatus {
	return mono.HealthStatus{Healthy: f.healthy, Message: f.name}
}

type testEnv struct {
	db            *gorm.DB
	hub           *hub.Hub
	limiter       *fakeLimiter
	messages      *message.Repository
	notifications *notification.Repository
	subscriptions *pushstore.Repository
	module        *Module
	app           *fiber.App
}

// setupTestEnv wires the API over an in-memory store with users user1,
// user2 and user3, and conversation X between user1 and user2.
func setupTestEnv(t *testing.T, checks ...HealthChecker) *testEnv {
	t.Helper()

	db, err := store.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))

	require.NoError(t, db.Create([]*user.User{
		{ID: "user1", FullName: "Ada Lovelace", Avatar: "/a.png"},
		{ID: "user2", FullName: "Bob Babbage"},
		{ID: "user3", FullName: "Eve"},
	}).Error)
	require.NoError(t, db.Create(&exchange.Exchange{ID: "X", Initiator: "user1", Receiver: "user2"}).Error)

	logger := &mockLogger{}
	users := user.NewRepository(db)
	exchanges := exchange.NewRepository(db)
	messages := message.NewRepository(db)
	notifications := notification.NewRepository(db)
	subscriptions := pushstore.NewRepository(db)

	h := hub.NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)

	limiter := &fakeLimiter{deny: map[string]bool{}}
	m := NewModule(Config{CORSOrigin: "http://localhost:5173"}, Deps{
		Verifier:      auth.NewVerifier(testSecret, ""),
		Clients:       h,
		Messaging:     messaging.NewService(exchanges, messages, users, h, nopPush{}, logger),
		Signaling:     signaling.NewRelay(exchanges, h, logger),
		Limiter:       limiter,
		Exchanges:     exchanges,
		Messages:      messages,
		Users:         users,
		Notifications: notifications,
		Push:          push.NewService(subscriptions, nil, logger),
		HealthChecks:  checks,
	}, logger)

	return &testEnv{
		db:            db,
		hub:           h,
		limiter:       limiter,
		messages:      messages,
		notifications: notifications,
		subscriptions: subscriptions,
		module:        m,
		app:           m.newApp(),
	}
}

func signToken(t *testing.T, userID string, ttl time.Duration) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func authRequest(t *testing.T, method, target, userID string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, userID, time.Hour))
	return req
}

func TestModule_Basics(t *testing.T) {
	env := setupTestEnv(t)

	if name := env.module.Name(); name != "api" {
		t.Errorf("Name() = %q, want 'api'", name)
	}
	if status := env.module.Health(context.Background()); status.Healthy {
		t.Error("Health() = healthy before Start")
	}
	if err := env.module.Stop(context.Background()); err != nil {
		t.Errorf("Stop() before Start error = %v", err)
	}
}

func TestModule_StartRequiresDeps(t *testing.T) {
	m := NewModule(Config{}, Deps{}, &mockLogger{})

	if err := m.Start(context.Background()); err == nil {
		t.Error("Start() error = nil, want missing dependencies")
	}
}

func TestCustomErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: customErrorHandler})
	app.Get("/teapot", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTeapot, "short and stout")
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return context.DeadlineExceeded
	})

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/teapot", fiber.StatusTeapot, `{"error":"short and stout"}`},
		{"/boom", fiber.StatusInternalServerError, `{"error":"Internal Server Error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil), -1)
			require.NoError(t, err)
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if got := readBody(t, resp); got != tt.wantBody {
				t.Errorf("body = %s, want %s", got, tt.wantBody)
			}
		})
	}
}

func TestCorsConfig(t *testing.T) {
	if cfg := corsConfig("*"); cfg.AllowCredentials {
		t.Error("wildcard origin must not allow credentials")
	}
	if cfg := corsConfig("http://localhost:5173"); !cfg.AllowCredentials || cfg.AllowOrigins != "http://localhost:5173" {
		t.Errorf("corsConfig() = %+v, want credentials for the configured origin", cfg)
	}
}
