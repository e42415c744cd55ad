// Package chat implements the per-chat ingress pipeline over a
// transport-neutral gateway: allowlist, abort triggers, dedupe, and the
// per-chat lock with its visible cancellable queue.
package chat

import "context"

// Button is one inline control attached to an outbound message.
type Button struct {
	Text         string
	CallbackData string
}

// SendOptions carries reply threading and inline controls.
type SendOptions struct {
	ReplyTo int64
	TopicID int64
	Buttons [][]Button
}

// Gateway is the chat transport seen by the core. Implementations wrap
// the actual platform client; the core never imports it directly.
type Gateway interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts SendOptions) (int64, error)
	EditMessage(ctx context.Context, chatID, messageID int64, text string, buttons [][]Button) error
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
}

// Message is one inbound chat update.
type Message struct {
	ChatID    int64
	MessageID int64
	UserID    int64
	TopicID   int64
	Text      string
}

// Callback is one inline-button press.
type Callback struct {
	ChatID int64
	UserID int64
	Data   string
}
