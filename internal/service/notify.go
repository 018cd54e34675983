package service

import (
	"context"
	"fmt"
	"time"

	"github.com/taskops/telegram-bridge/internal/biz/domain"
	"github.com/taskops/telegram-bridge/internal/biz/repo"
)

// Notifier sends throttled operator alerts so a repeatedly failing poll
// cannot storm the chat. One cooldown window per failure kind.
type Notifier struct {
	messenger repo.Messenger
	recipient int64 // configured operator chat; 0 means no recipient
	gate      *domain.CooldownGate
}

// NewNotifier creates a notifier. now may be nil for the real clock.
func NewNotifier(messenger repo.Messenger, recipient int64, cooldown time.Duration, now func() time.Time) *Notifier {
	return &Notifier{
		messenger: messenger,
		recipient: recipient,
		gate:      domain.NewCooldownGate(cooldown, now),
	}
}

// NotifyOnce sends an alert of the given kind to the configured recipient,
// unless one was already sent within the cooldown window or no recipient is
// configured.
func (n *Notifier) NotifyOnce(ctx context.Context, kind domain.NotifyKind, detail string) {
	if n.recipient == 0 {
		return
	}
	if !n.gate.Allow(kind) {
		return
	}

	var text string
	switch kind {
	case domain.NotifyConflict:
		text = "⚠️ Another consumer took over the update stream (HTTP 409). " + detail
	case domain.NotifyUnauthorized:
		text = "🚫 Telegram rejected the bot credential (HTTP 401). " + detail
	default:
		text = detail
	}

	if err := n.messenger.SendText(ctx, n.recipient, text); err != nil {
		fmt.Printf("[Notifier] Failed to send %s alert: %v\n", kind, err)
		return
	}
	n.gate.MarkSent(kind)
}

// HintOnce sends a cooldown-limited hint to an arbitrary chat, used for
// configuration hints and unauthorized-sender warnings. Separate kinds keep
// separate windows.
func (n *Notifier) HintOnce(ctx context.Context, kind domain.NotifyKind, chatID int64, text string) {
	if !n.gate.Allow(kind) {
		return
	}
	if err := n.messenger.SendText(ctx, chatID, text); err != nil {
		fmt.Printf("[Notifier] Failed to send %s hint: %v\n", kind, err)
		return
	}
	n.gate.MarkSent(kind)
}
