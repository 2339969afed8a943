package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// WebPushConfig carries the VAPID credentials for the Web Push protocol.
type WebPushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string // contact mailto/https URL required by push services
	TTLSeconds      int
}

type webPushSender struct {
	cfg WebPushConfig
}

// NewWebPushSender constructs a Sender backed by the Web Push protocol.
func NewWebPushSender(cfg WebPushConfig) (Sender, error) {
	cfg.VAPIDPublicKey = strings.TrimSpace(cfg.VAPIDPublicKey)
	cfg.VAPIDPrivateKey = strings.TrimSpace(cfg.VAPIDPrivateKey)
	cfg.Subscriber = strings.TrimSpace(cfg.Subscriber)

	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
		return nil, errors.New("webpush: VAPID key pair is required")
	}
	if cfg.Subscriber == "" {
		return nil, errors.New("webpush: subscriber contact is required")
	}
	if cfg.TTLSeconds <= 0 {
		cfg.TTLSeconds = 300
	}

	return &webPushSender{cfg: cfg}, nil
}

func (s *webPushSender) Send(ctx context.Context, subscription []byte, payload Payload) error {
	var sub webpush.Subscription
	if err := json.Unmarshal(subscription, &sub); err != nil {
		return fmt.Errorf("webpush: decode subscription: %w", err)
	}
	if strings.TrimSpace(sub.Endpoint) == "" {
		return errors.New("webpush: subscription has no endpoint")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webpush: encode payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &sub, &webpush.Options{
		Subscriber:      s.cfg.Subscriber,
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		TTL:             s.cfg.TTLSeconds,
	})
	if err != nil {
		return fmt.Errorf("webpush: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		// Drain so the connection can be reused; bodies here are tiny.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("webpush: push service returned %d", resp.StatusCode)
	}

	return nil
}
