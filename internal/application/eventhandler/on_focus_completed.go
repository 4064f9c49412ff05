// Package eventhandler holds the reactive side of the system: handlers that
// subscribe to domain events and run side effects such as notifications and
// read-model updates. A handler failure never reaches the publisher.
package eventhandler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/safe1124/studyhub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON FOCUS COMPLETED HANDLER
// Forwards automatic focus-timer completions to the notification sink.
// Delivery is attempted once; a failure is logged and dropped.
// ═══════════════════════════════════════════════════════════════════════════

// FocusNotifier delivers a completion notice to the user.
type FocusNotifier interface {
	NotifyFocusCompleted(ctx context.Context, event shared.FocusTimerCompletedEvent) error
}

// OnFocusCompletedHandler handles shared.EventFocusTimerCompleted.
//
// Delivery runs on its own goroutine so that a slow sink never holds up the
// timer callback that published the event.
type OnFocusCompletedHandler struct {
	notifier FocusNotifier
	logger   *slog.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewOnFocusCompletedHandler creates the handler.
func NewOnFocusCompletedHandler(notifier FocusNotifier, logger *slog.Logger) *OnFocusCompletedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnFocusCompletedHandler{
		notifier: notifier,
		logger:   logger.With("handler", "on_focus_completed"),
		timeout:  5 * time.Second,
	}
}

// Handle implements shared.EventHandler.
func (h *OnFocusCompletedHandler) Handle(event shared.Event) error {
	focusEvent, ok := event.(shared.FocusTimerCompletedEvent)
	if !ok {
		h.logger.Warn("received unexpected event", "event_type", event.EventType())
		return nil
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.deliver(focusEvent)
	}()
	return nil
}

func (h *OnFocusCompletedHandler) deliver(event shared.FocusTimerCompletedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.notifier.NotifyFocusCompleted(ctx, event); err != nil {
		h.logger.Warn("focus completion notification dropped",
			"user_id", event.AggregateID(),
			"minutes", event.Minutes,
			"error", err,
		)
		return
	}

	h.logger.Debug("focus completion notified",
		"user_id", event.AggregateID(),
		"minutes", event.Minutes,
		"currency", event.Currency,
	)
}

// Wait blocks until in-flight deliveries finish.
func (h *OnFocusCompletedHandler) Wait() {
	h.wg.Wait()
}

// Register subscribes the handler.
func (h *OnFocusCompletedHandler) Register(bus shared.EventSubscriber) error {
	return bus.Subscribe(shared.EventFocusTimerCompleted, h.Handle)
}

// LogNotifier is the sink used when no delivery channel is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

// NotifyFocusCompleted logs the notification.
func (n LogNotifier) NotifyFocusCompleted(_ context.Context, event shared.FocusTimerCompletedEvent) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("focus timer completed",
		"user_id", event.AggregateID(),
		"minutes", event.Minutes,
		"currency", event.Currency,
	)
	return nil
}
