package push

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWebPushSenderValidation(t *testing.T) {
	_, err := NewWebPushSender(WebPushConfig{})
	require.Error(t, err)

	_, err = NewWebPushSender(WebPushConfig{VAPIDPublicKey: "pub"})
	require.Error(t, err)

	_, err = NewWebPushSender(WebPushConfig{VAPIDPublicKey: "pub", VAPIDPrivateKey: "priv"})
	require.Error(t, err, "a subscriber contact is mandatory")

	sender, err := NewWebPushSender(WebPushConfig{
		VAPIDPublicKey:  "pub",
		VAPIDPrivateKey: "priv",
		Subscriber:      "mailto:ops@example.com",
	})
	require.NoError(t, err)
	assert.NotNil(t, sender)
}

func TestWebPushSenderRejectsBadSubscriptions(t *testing.T) {
	sender, err := NewWebPushSender(WebPushConfig{
		VAPIDPublicKey:  "pub",
		VAPIDPrivateKey: "priv",
		Subscriber:      "mailto:ops@example.com",
	})
	require.NoError(t, err)

	payload := Payload{Title: "Time to take your pill", Body: "Tap to update your status.", URL: "/home"}

	err = sender.Send(context.Background(), []byte("not json"), payload)
	require.Error(t, err)

	err = sender.Send(context.Background(), []byte(`{"keys":{"p256dh":"a","auth":"b"}}`), payload)
	require.Error(t, err, "a subscription without an endpoint is undeliverable")
}
