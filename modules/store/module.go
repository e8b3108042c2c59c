package store

import (
	"context"
	"fmt"

	"github.com/example/comm-relay/domain/exchange"
	"github.com/example/comm-relay/domain/message"
	"github.com/example/comm-relay/domain/notification"
	"github.com/example/comm-relay/domain/push"
	"github.com/example/comm-relay/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Module owns the session store connection and its repositories.
type Module struct {
	db     *gorm.DB
	path   string
	logger types.Logger

	users         *user.Repository
	exchanges     *exchange.Repository
	messages      *message.Repository
	notifications *notification.Repository
	subscriptions *push.Repository
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule opens the SQLite database at path. Migrations run on Start.
func NewModule(path string, logger types.Logger) (*Module, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	return newModule(db, path, logger), nil
}

func newModule(db *gorm.DB, path string, logger types.Logger) *Module {
	return &Module{
		db:            db,
		path:          path,
		logger:        logger,
		users:         user.NewRepository(db),
		exchanges:     exchange.NewRepository(db),
		messages:      message.NewRepository(db),
		notifications: notification.NewRepository(db),
		subscriptions: push.NewRepository(db),
	}
}

// Open connects to the SQLite database at path.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would get its own empty in-memory database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access database handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Migrate creates or updates every table the relay touches.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&user.User{},
		&exchange.Exchange{},
		&message.Message{},
		&notification.Notification{},
		&push.Subscription{},
	)
}

// Name returns the module name.
func (m *Module) Name() string {
	return "store"
}

// Start runs the migrations.
func (m *Module) Start(_ context.Context) error {
	if err := Migrate(m.db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	m.logger.Info("Session store ready", "path", m.path)
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	sqlDB, err := m.db.DB()
	if err == nil {
		_ = sqlDB.Close()
	}
	m.logger.Info("Session store closed")
	return nil
}

// Health pings the database.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	sqlDB, err := m.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: err.Error()}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"path": m.path},
	}
}

// Users returns the user repository.
func (m *Module) Users() *user.Repository { return m.users }

// Exchanges returns the exchange repository.
func (m *Module) Exchanges() *exchange.Repository { return m.exchanges }

// Messages returns the message repository.
func (m *Module) Messages() *message.Repository { return m.messages }

// Notifications returns the notification repository.
func (m *Module) Notifications() *notification.Repository { return m.notifications }

// Subscriptions returns the push subscription repository.
func (m *Module) Subscriptions() *push.Repository { return m.subscriptions }
