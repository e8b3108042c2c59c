package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	pushstore "github.com/example/comm-relay/domain/push"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

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

type dispatch struct {
	endpoint string
	payload  []byte
}

// mockDispatcher answers every dispatch with a fixed status or error.
type mockDispatcher struct {
	mu     sync.Mutex
	calls  []dispatch
	status int
	err    error
}

func (d *mockDispatcher) Dispatch(_ context.Context, sub *pushstore.Subscription, payload []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatch{endpoint: sub.Endpoint, payload: payload})
	return d.status, d.err
}

func setupService(t *testing.T, d *mockDispatcher) (*Service, *pushstore.Repository) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&pushstore.Subscription{}))

	repo := pushstore.NewRepository(db)
	if d == nil {
		return NewService(repo, nil, &mockLogger{}), repo
	}
	return NewService(repo, d, &mockLogger{}), repo
}

func validRegistration(endpoint string) Registration {
	return Registration{
		Endpoint: endpoint,
		Keys:     Keys{P256dh: "BNcRdreALRFXTkOOUHK1EtK2wtaz5Ry4YfYCA_0QTpQtUbVlUls0VJXg7A8u-Ts1XbjhazAkj7I99e8QcYP7DkM", Auth: "tBHItJI5svbpez7KI4CCXg"},
	}
}

func TestService_RegisterThenNotify(t *testing.T) {
	d := &mockDispatcher{status: http.StatusCreated}
	svc, _ := setupService(t, d)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "user1", validRegistration("https://push.example.com/ep1")))

	payload := Payload{Title: "New message from Ada", Body: "hi", Data: Data{URL: "/exchange/X"}}
	outcome := svc.Notify(ctx, "user1", payload)

	assert.Equal(t, OutcomeDelivered, outcome)
	require.Len(t, d.calls, 1)
	assert.Equal(t, "https://push.example.com/ep1", d.calls[0].endpoint)

	var got Payload
	require.NoError(t, json.Unmarshal(d.calls[0].payload, &got))
	assert.Equal(t, payload, got)
}

func TestService_ReRegisterReplacesEndpoint(t *testing.T) {
	d := &mockDispatcher{status: http.StatusCreated}
	svc, _ := setupService(t, d)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "user1", validRegistration("https://push.example.com/old")))
	require.NoError(t, svc.Register(ctx, "user1", validRegistration("https://push.example.com/new")))

	svc.Notify(ctx, "user1", Payload{Title: "t"})

	require.Len(t, d.calls, 1)
	assert.Equal(t, "https://push.example.com/new", d.calls[0].endpoint)
}

func TestService_GoneEndpointIsDeleted(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			d := &mockDispatcher{status: status}
			svc, repo := setupService(t, d)
			ctx := context.Background()

			require.NoError(t, svc.Register(ctx, "user1", validRegistration("https://push.example.com/ep")))

			assert.Equal(t, OutcomeGone, svc.Notify(ctx, "user1", Payload{Title: "t"}))
			_, err := repo.FindByUser(ctx, "user1")
			assert.ErrorIs(t, err, pushstore.ErrNotFound)

			assert.Equal(t, OutcomeNoSubscription, svc.Notify(ctx, "user1", Payload{Title: "t"}))
			assert.Len(t, d.calls, 1, "second notify must not dispatch")
		})
	}
}

func TestService_TransientFailuresKeepSubscription(t *testing.T) {
	tests := []struct {
		name   string
		status int
		err    error
	}{
		{"server error", http.StatusInternalServerError, nil},
		{"rate limited", http.StatusTooManyRequests, nil},
		{"transport error", 0, errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &mockDispatcher{status: tt.status, err: tt.err}
			svc, repo := setupService(t, d)
			ctx := context.Background()

			require.NoError(t, svc.Register(ctx, "user1", validRegistration("https://push.example.com/ep")))

			assert.Equal(t, OutcomeFailed, svc.Notify(ctx, "user1", Payload{Title: "t"}))
			_, err := repo.FindByUser(ctx, "user1")
			assert.NoError(t, err)
		})
	}
}

func TestService_NotifyWithoutSubscription(t *testing.T) {
	d := &mockDispatcher{status: http.StatusCreated}
	svc, _ := setupService(t, d)

	assert.Equal(t, OutcomeNoSubscription, svc.Notify(context.Background(), "nobody", Payload{}))
	assert.Empty(t, d.calls)
}

func TestService_Disabled(t *testing.T) {
	svc, _ := setupService(t, nil)
	assert.Equal(t, OutcomeDisabled, svc.Notify(context.Background(), "user1", Payload{}))
}

func TestService_RegisterValidation(t *testing.T) {
	svc, _ := setupService(t, &mockDispatcher{})
	ctx := context.Background()

	tests := []struct {
		name string
		reg  Registration
	}{
		{"missing endpoint", Registration{Keys: Keys{P256dh: "k", Auth: "a"}}},
		{"endpoint not a url", Registration{Endpoint: "not a url", Keys: Keys{P256dh: "k", Auth: "a"}}},
		{"missing p256dh", Registration{Endpoint: "https://push.example.com/ep", Keys: Keys{Auth: "a"}}},
		{"missing auth", Registration{Endpoint: "https://push.example.com/ep", Keys: Keys{P256dh: "k"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Register(ctx, "user1", tt.reg)
			assert.ErrorIs(t, err, ErrInvalidRegistration)
		})
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "gone", OutcomeGone.String())
	assert.Equal(t, "Outcome(42)", Outcome(42).String())
}
