package notify

import "context"

// Message is one push notification.
type Message struct {
	Text     string
	Title    string
	URL      string
	URLTitle string
	HTML     bool
}

// Notifier delivers a run summary to the user.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
