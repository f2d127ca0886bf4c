// Package notify delivers booking confirmations. Delivery is best effort:
// callers log failures and never fail a booking over email.
package notify

import "context"

type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

// Sender sends a single notification message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NoopSender drops every message. Used when no provider is configured.
type NoopSender struct{}

func (NoopSender) Send(context.Context, Message) error { return nil }
