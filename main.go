package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/example/comm-relay/config"
	"github.com/example/comm-relay/modules/api"
	"github.com/example/comm-relay/modules/auth"
	"github.com/example/comm-relay/modules/bridge"
	"github.com/example/comm-relay/modules/hub"
	"github.com/example/comm-relay/modules/messaging"
	"github.com/example/comm-relay/modules/push"
	"github.com/example/comm-relay/modules/ratelimit"
	"github.com/example/comm-relay/modules/signaling"
	"github.com/example/comm-relay/modules/store"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	"github.com/redis/go-redis/v9"
)

func main() {
	log.Println("=== Communication Relay ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	storeModule, err := store.NewModule(cfg.DatabasePath, logger.WithModule("store"))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	// Create modules
	hubModule := hub.NewModule(logger.WithModule("hub"))
	connections := hubModule.GetHub()

	messagingModule := messaging.NewModule(
		storeModule.Exchanges(),
		storeModule.Messages(),
		storeModule.Users(),
		connections,
		logger.WithModule("messaging"),
	)
	relay := signaling.NewRelay(storeModule.Exchanges(), connections, logger.WithModule("signaling"))

	var dispatcher push.Dispatcher
	if cfg.PushEnabled() {
		dispatcher = push.NewWebPushDispatcher(push.VAPIDConfig{
			PublicKey:  cfg.VAPIDPublicKey,
			PrivateKey: cfg.VAPIDPrivateKey,
			Subject:    cfg.VAPIDSubject,
		})
	}
	pushService := push.NewService(storeModule.Subscriptions(), dispatcher, logger.WithModule("push"))
	pushModule := push.NewModule(pushService, logger.WithModule("push"))

	backoff := bridge.DefaultBackoff()
	backoff.BaseDelay = cfg.BridgeBackoffBase
	backoff.MaxDelay = cfg.BridgeBackoffMax
	subscriber := bridge.NewRedisSubscriber(redisClient, backoff, logger.WithModule("bridge"))
	bridgeModule := bridge.NewModule(subscriber, storeModule.Notifications(), cfg.BridgeChannels, logger.WithModule("bridge"))

	rateLimitModule := ratelimit.NewModule(redisClient, cfg.SendRateLimit, cfg.SendRateWindow, logger.WithModule("ratelimit"))

	apiModule := api.NewModule(api.Config{
		Port:       cfg.Port,
		CORSOrigin: cfg.CORSOrigin,
	}, api.Deps{
		Verifier:      auth.NewVerifier(cfg.AccessTokenSecret, cfg.TokenIssuer),
		Clients:       connections,
		Messaging:     messagingModule.Service(),
		Signaling:     relay,
		Limiter:       rateLimitModule,
		Exchanges:     storeModule.Exchanges(),
		Messages:      storeModule.Messages(),
		Users:         storeModule.Users(),
		Notifications: storeModule.Notifications(),
		Push:          pushService,
		HealthChecks: []api.HealthChecker{
			storeModule, hubModule, pushModule, bridgeModule, rateLimitModule,
		},
	}, logger.WithModule("api"))

	// Register modules with the framework.
	// Order: storage first, then event consumers, then producers, then the server.
	app.Register(storeModule)     // SQLite storage + migrations
	app.Register(hubModule)       // Connection hub + notification consumer
	app.Register(pushModule)      // Web Push delivery consumer
	app.Register(messagingModule) // Chat + push request emitter
	app.Register(bridgeModule)    // Redis pub/sub -> notifications
	app.Register(rateLimitModule) // Send throttling
	app.Register(apiModule)       // HTTP/WebSocket API

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				if err := app.Stop(ctx); err != nil {
					return err
				}
				return redisClient.Close()
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg config.Config) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("  - SQLite: %s", cfg.DatabasePath)
	log.Printf("  - Redis: %s (channels: %v)", cfg.RedisAddr, cfg.BridgeChannels)
	log.Printf("  - Web Push: enabled=%t", cfg.PushEnabled())
	log.Printf("  - Send limit: %d per %s", cfg.SendRateLimit, cfg.SendRateWindow)
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%d):", cfg.Port)
	log.Println("  GET    /health                               - Per-module health")
	log.Println("  GET    /api/v1/conversations/:id/messages    - Conversation history")
	log.Println("  GET    /api/v1/notifications                 - Latest 20 notifications")
	log.Println("  PATCH  /api/v1/notifications/read            - Mark all notifications read")
	log.Println("  POST   /api/v1/push/subscribe                - Register a push subscription")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%d/ws):", cfg.Port)
	log.Println("  Auth: accessToken cookie or Authorization: Bearer <token>")
	log.Println("  Events: join-conversation, leave-conversation, send-message,")
	log.Println("          call-offer, call-answer, ice-candidate, hangup")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
