// Package messenger abstracts notification delivery channels (Telegram,
// Slack, desktop popups). Implementations handle platform-specific API
// calls; the interface is platform-agnostic.
package messenger

import "context"

// MessageID uniquely identifies a delivered message within a platform.
type MessageID string

// Messenger delivers notification text to a channel on one platform.
type Messenger interface {
	// SendMessage posts a text message to a channel (or chat, or the local
	// desktop, depending on platform) and returns its platform message ID.
	SendMessage(ctx context.Context, channelID, text string) (MessageID, error)

	// Platform returns the messenger platform identifier
	// (e.g. "telegram", "slack", "desktop").
	Platform() string
}
