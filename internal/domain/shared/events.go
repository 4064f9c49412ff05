package shared

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of domain event.
type EventType string

const (
	// Study events
	EventStudyStarted     EventType = "study.started"
	EventStudyEnded       EventType = "study.ended"
	EventSessionCompleted EventType = "study.session_completed"

	// Focus timer events
	EventFocusTimerCompleted EventType = "focus.completed"

	// Progression events
	EventLevelChanged EventType = "progression.level_changed"

	// Economy events
	EventCurrencyCredited EventType = "economy.currency_credited"
	EventItemPurchased    EventType = "economy.item_purchased"
	EventItemEquipped     EventType = "economy.item_equipped"
)

// Event is the base interface for all domain events.
type Event interface {
	EventID() string
	EventType() EventType
	OccurredAt() time.Time

	// AggregateID is the user the event belongs to.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
}

func (e BaseEvent) EventID() string       { return e.ID }
func (e BaseEvent) EventType() EventType  { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.UserID }

// NewBaseEvent creates a base event stamped with at. Callers pass the
// injected clock's time so that events line up with record timestamps.
func NewBaseEvent(eventType EventType, userID string, at time.Time) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: at,
		UserID:    userID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Study Events
// ═══════════════════════════════════════════════════════════════════════════

// StudyStartedEvent is emitted when any kind of session opens (manual start,
// resume, presence enter, focus start).
type StudyStartedEvent struct {
	BaseEvent
	Source string `json:"source"`
}

func (e StudyStartedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"source": e.Source}
}

// NewStudyStartedEvent creates a StudyStartedEvent.
func NewStudyStartedEvent(userID, source string, at time.Time) StudyStartedEvent {
	return StudyStartedEvent{BaseEvent: NewBaseEvent(EventStudyStarted, userID, at), Source: source}
}

// StudyEndedEvent is emitted when a session of the given source closes,
// whether or not it produced a record.
type StudyEndedEvent struct {
	BaseEvent
	Source string `json:"source"`
}

func (e StudyEndedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"source": e.Source}
}

// NewStudyEndedEvent creates a StudyEndedEvent.
func NewStudyEndedEvent(userID, source string, at time.Time) StudyEndedEvent {
	return StudyEndedEvent{BaseEvent: NewBaseEvent(EventStudyEnded, userID, at), Source: source}
}

// SessionCompletedEvent is emitted after a StudyRecord was appended.
type SessionCompletedEvent struct {
	BaseEvent
	RecordID string `json:"record_id"`
	Source   string `json:"source"`
	Minutes  int    `json:"minutes"`
	DayKey   string `json:"day_key"`
	WeekKey  string `json:"week_key"`
	MonthKey string `json:"month_key"`
}

func (e SessionCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"record_id": e.RecordID,
		"source":    e.Source,
		"minutes":   e.Minutes,
		"day_key":   e.DayKey,
		"week_key":  e.WeekKey,
		"month_key": e.MonthKey,
	}
}

// FocusTimerCompletedEvent is emitted when a focus timer reaches its deadline
// without being stopped. It is the input of the notification sink.
type FocusTimerCompletedEvent struct {
	BaseEvent
	Minutes  int `json:"minutes"`
	Currency int `json:"currency"`
}

func (e FocusTimerCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"minutes":  e.Minutes,
		"currency": e.Currency,
	}
}

// NewFocusTimerCompletedEvent creates a FocusTimerCompletedEvent.
func NewFocusTimerCompletedEvent(userID string, minutes, currency int, at time.Time) FocusTimerCompletedEvent {
	return FocusTimerCompletedEvent{
		BaseEvent: NewBaseEvent(EventFocusTimerCompleted, userID, at),
		Minutes:   minutes,
		Currency:  currency,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progression & Economy Events
// ═══════════════════════════════════════════════════════════════════════════

// LevelChangedEvent is emitted when a credit moves a user to a new level.
type LevelChangedEvent struct {
	BaseEvent
	OldLevel          int `json:"old_level"`
	NewLevel          int `json:"new_level"`
	CumulativeMinutes int `json:"cumulative_minutes"`
}

func (e LevelChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"old_level":          e.OldLevel,
		"new_level":          e.NewLevel,
		"cumulative_minutes": e.CumulativeMinutes,
	}
}

// NewLevelChangedEvent creates a LevelChangedEvent.
func NewLevelChangedEvent(userID string, oldLevel, newLevel, cumulative int, at time.Time) LevelChangedEvent {
	return LevelChangedEvent{
		BaseEvent:         NewBaseEvent(EventLevelChanged, userID, at),
		OldLevel:          oldLevel,
		NewLevel:          newLevel,
		CumulativeMinutes: cumulative,
	}
}

// CurrencyCreditedEvent is emitted after a wallet credit.
type CurrencyCreditedEvent struct {
	BaseEvent
	Amount  int `json:"amount"`
	Balance int `json:"balance"`
}

func (e CurrencyCreditedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"amount": e.Amount, "balance": e.Balance}
}

// ItemEvent covers purchases and equips. Role is the platform role the
// role-assignment collaborator should grant.
type ItemEvent struct {
	BaseEvent
	ItemID   string `json:"item_id"`
	Category string `json:"category"`
	Role     string `json:"role"`
}

func (e ItemEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"item_id":  e.ItemID,
		"category": e.Category,
		"role":     e.Role,
	}
}

// NewItemEvent creates an ItemEvent of the given type.
func NewItemEvent(eventType EventType, userID, itemID, category, role string, at time.Time) ItemEvent {
	return ItemEvent{
		BaseEvent: NewBaseEvent(eventType, userID, at),
		ItemID:    itemID,
		Category:  category,
		Role:      role,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher publishes events. Publishing is fire-and-forget: handler
// failures never propagate back to the publisher.
type EventPublisher interface {
	Publish(event Event) error
}

// EventSubscriber registers handlers.
type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) error { return nil }
