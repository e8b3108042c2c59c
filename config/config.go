package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"
)

// ErrMissingSecret is returned when no token verification secret is configured.
var ErrMissingSecret = errors.New("ACCESS_TOKEN_SECRET is required")

// Config holds the relay configuration loaded from the environment.
type Config struct {
	Port            int
	DatabasePath    string
	CORSOrigin      string
	ShutdownTimeout time.Duration

	// Token verification. The secret is shared with the API process that issues tokens.
	AccessTokenSecret string
	TokenIssuer       string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Channels the event bridge subscribes to.
	BridgeChannels    []string
	BridgeBackoffBase time.Duration
	BridgeBackoffMax  time.Duration

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string

	SendRateLimit  int
	SendRateWindow time.Duration
}

// Load reads the configuration from environment variables.
func Load() (Config, error) {
	cfg := Config{
		Port:              getEnvInt("PORT", 8001),
		DatabasePath:      getEnv("DATABASE_PATH", "relay.db"),
		CORSOrigin:        getEnv("CORS_ORIGIN", "http://localhost:5173"),
		ShutdownTimeout:   getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		AccessTokenSecret: os.Getenv("ACCESS_TOKEN_SECRET"),
		TokenIssuer:       getEnv("JWT_ISSUER", ""),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		BridgeChannels:    []string{"agreement:new", "agreement:update"},
		BridgeBackoffBase: getEnvDuration("BRIDGE_BACKOFF_BASE", 500*time.Millisecond),
		BridgeBackoffMax:  getEnvDuration("BRIDGE_BACKOFF_MAX", 30*time.Second),
		VAPIDPublicKey:    getEnv("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey:   getEnv("VAPID_PRIVATE_KEY", ""),
		VAPIDSubject:      getEnv("VAPID_SUBJECT", "mailto:admin@example.com"),
		SendRateLimit:     getEnvInt("SEND_RATE_LIMIT", 30),
		SendRateWindow:    getEnvDuration("SEND_RATE_WINDOW", 10*time.Second),
	}

	if cfg.AccessTokenSecret == "" {
		return cfg, ErrMissingSecret
	}
	return cfg, nil
}

// PushEnabled reports whether VAPID keys are configured.
func (c Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration returns environment variable as duration or default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: invalid duration value for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}
