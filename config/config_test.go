package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_SECRET", "")

	_, err := Load()
	if !errors.Is(err, ErrMissingSecret) {
		t.Errorf("Load() error = %v, want %v", err, ErrMissingSecret)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8001 {
		t.Errorf("Port = %d, want 8001", cfg.Port)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q, want localhost:6379", cfg.RedisAddr)
	}
	if len(cfg.BridgeChannels) != 2 {
		t.Errorf("BridgeChannels = %v, want 2 channels", cfg.BridgeChannels)
	}
	if cfg.PushEnabled() {
		t.Error("PushEnabled() = true without VAPID keys")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_SECRET", "secret")
	t.Setenv("PORT", "9100")
	t.Setenv("SEND_RATE_WINDOW", "1m")
	t.Setenv("VAPID_PUBLIC_KEY", "pub")
	t.Setenv("VAPID_PRIVATE_KEY", "priv")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 9100 {
		t.Errorf("Port = %d, want 9100", cfg.Port)
	}
	if cfg.SendRateWindow != time.Minute {
		t.Errorf("SendRateWindow = %v, want 1m", cfg.SendRateWindow)
	}
	if !cfg.PushEnabled() {
		t.Error("PushEnabled() = false with VAPID keys set")
	}
}

func TestGetEnvInt_Invalid(t *testing.T) {
	t.Setenv("RELAY_TEST_INT", "not-a-number")

	if got := getEnvInt("RELAY_TEST_INT", 7); got != 7 {
		t.Errorf("getEnvInt() = %d, want 7", got)
	}
}

func TestGetEnvDuration_Invalid(t *testing.T) {
	t.Setenv("RELAY_TEST_DURATION", "soon")

	if got := getEnvDuration("RELAY_TEST_DURATION", time.Second); got != time.Second {
		t.Errorf("getEnvDuration() = %v, want 1s", got)
	}
}
