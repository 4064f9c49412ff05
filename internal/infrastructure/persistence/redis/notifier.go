package redis

import (
	"context"
	"time"

	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/pkg/circuitbreaker"
)

// FocusNotification is the message published when a focus timer expires.
type FocusNotification struct {
	EventID     string    `json:"event_id"`
	UserID      string    `json:"user_id"`
	Minutes     int       `json:"minutes"`
	Currency    int       `json:"currency"`
	CompletedAt time.Time `json:"completed_at"`
}

// Notifier publishes focus-timer completions on a Redis channel for the chat
// layer to deliver. Delivery is fire-and-forget: nothing is retried, and an
// open breaker drops notifications until Redis recovers.
type Notifier struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
}

// NewNotifier creates a Notifier. A nil breaker gets the notifier defaults.
func NewNotifier(cache *Cache, breaker *circuitbreaker.CircuitBreaker) *Notifier {
	if breaker == nil {
		breaker = circuitbreaker.NotifierBreaker(nil)
	}
	return &Notifier{cache: cache, breaker: breaker}
}

// Channel returns the focus-completion channel name.
func (n *Notifier) Channel() string {
	return n.cache.Key("notifications", "focus")
}

// NotifyFocusCompleted publishes one notification.
func (n *Notifier) NotifyFocusCompleted(ctx context.Context, event shared.FocusTimerCompletedEvent) error {
	msg := FocusNotification{
		EventID:     event.EventID(),
		UserID:      event.AggregateID(),
		Minutes:     event.Minutes,
		Currency:    event.Currency,
		CompletedAt: event.OccurredAt(),
	}
	return n.breaker.Execute(ctx, func(ctx context.Context) error {
		return n.cache.Publish(ctx, n.Channel(), msg)
	})
}
