package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/vigil/internal/messenger"
)

// ErrPlatformNotFound is returned when a messenger platform is not registered.
var ErrPlatformNotFound = errors.New("notify: platform not found") //nolint:gochecknoglobals // sentinel error

// MessengerRegistry maps platform names to Messenger implementations.
type MessengerRegistry interface {
	Get(platform string) (messenger.Messenger, bool)
}

// Target is one configured notification destination.
type Target struct {
	Platform  string
	ChannelID string // chat/channel identifier; ignored by the desktop sink
}

// Notifier fans one notification out to every configured target.
// Falls back to logging when no targets are configured.
type Notifier struct {
	messengers MessengerRegistry
	targets    []Target
}

// Compile-time interface check.
var _ Sink = (*Notifier)(nil) //nolint:gochecknoglobals // compile-time check

// New creates a Notifier with the given messenger registry and targets.
func New(messengers MessengerRegistry, targets []Target) *Notifier {
	return &Notifier{
		messengers: messengers,
		targets:    targets,
	}
}

// Notify formats and delivers n to every target. A single failing target
// does not stop the others; the last error is returned if nothing was
// delivered.
func (n *Notifier) Notify(ctx context.Context, notif Notification) error {
	text := FormatMessage(notif)

	if len(n.targets) == 0 {
		log.Info().Str("agent", notif.AgentName).Str("kind", string(notif.Kind)).Msg("no notification targets configured")
		return nil
	}

	var lastErr error
	delivered := false
	for _, tgt := range n.targets {
		m, ok := n.messengers.Get(tgt.Platform)
		if !ok {
			lastErr = fmt.Errorf("notify.Notifier.Notify: platform %q: %w", tgt.Platform, ErrPlatformNotFound)
			continue
		}

		if _, sendErr := m.SendMessage(ctx, tgt.ChannelID, text); sendErr != nil {
			log.Warn().Err(sendErr).Str("platform", tgt.Platform).Msg("notification target failed")
			lastErr = fmt.Errorf("notify.Notifier.Notify: send via %q: %w", tgt.Platform, sendErr)
			continue
		}
		delivered = true
	}

	if !delivered && lastErr != nil {
		return lastErr
	}
	return nil
}

// FormatMessage renders the user-facing text for a notification.
func FormatMessage(n Notification) string {
	switch n.Kind {
	case KindWaiting:
		if n.Detail != "" {
			return fmt.Sprintf("⏳ %s needs your input: %s", n.AgentName, n.Detail)
		}
		return fmt.Sprintf("⏳ %s is waiting for your input", n.AgentName)
	case KindCompleted:
		if n.Detail != "" {
			return fmt.Sprintf("✅ %s finished: %s", n.AgentName, n.Detail)
		}
		return fmt.Sprintf("✅ %s finished its task", n.AgentName)
	case KindError:
		if n.Detail != "" {
			return fmt.Sprintf("❌ %s failed: %s", n.AgentName, n.Detail)
		}
		return fmt.Sprintf("❌ %s hit an error", n.AgentName)
	default:
		return fmt.Sprintf("%s: %s", n.AgentName, n.Detail)
	}
}
