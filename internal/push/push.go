package push

import "context"

// Payload is the JSON message the service worker renders. URL is the
// deep-link target opened when the notification is tapped.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// Sender delivers a push message to a stored subscription. The subscription
// bytes are the payload captured at registration time; the engine treats them
// as opaque. Any error counts as a delivery failure and the caller relies on
// the next scheduled run to retry.
type Sender interface {
	Send(ctx context.Context, subscription []byte, payload Payload) error
}
