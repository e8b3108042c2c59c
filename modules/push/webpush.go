package push

import (
	"context"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	pushstore "github.com/example/comm-relay/domain/push"
)

// VAPIDConfig identifies this server to push services.
type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	Subject    string
	TTL        time.Duration
}

// WebPushDispatcher encrypts and sends messages per RFC 8291 with VAPID.
type WebPushDispatcher struct {
	config VAPIDConfig
	client *http.Client
}

// NewWebPushDispatcher creates a dispatcher with its own HTTP client.
func NewWebPushDispatcher(config VAPIDConfig) *WebPushDispatcher {
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}
	return &WebPushDispatcher{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Dispatch sends payload to sub and returns the push service status code.
func (d *WebPushDispatcher) Dispatch(ctx context.Context, sub *pushstore.Subscription, payload []byte) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      d.client,
		Subscriber:      d.config.Subject,
		VAPIDPublicKey:  d.config.PublicKey,
		VAPIDPrivateKey: d.config.PrivateKey,
		TTL:             int(d.config.TTL.Seconds()),
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
