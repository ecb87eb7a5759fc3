package events

import "time"

// Subjects published on the EVENTS stream. The subject doubles as the event type.
const (
	TypeTurnCompleted     = "chat.turn_completed"
	TypeFeedbackSubmitted = "chat.feedback_submitted"
	TypeReconcileRequired = "memory.reconcile_required"
)

// Event is what the assistant publishes and the reconciler consumes.
type Event interface {
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

// BaseEvent is the only Event implementation; subscribers decode into it as well.
type BaseEvent struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func (e BaseEvent) EventType() string { return e.Type }
func (e BaseEvent) Payload() map[string]interface{} { return e.Data }
func (e BaseEvent) Timestamp() time.Time { return e.OccurredAt }

func newEvent(eventType string, data map[string]interface{}) Event {
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now().UTC()}
}

func NewTurnCompleted(data map[string]interface{}) Event {
	return newEvent(TypeTurnCompleted, data)
}

func NewFeedbackSubmitted(data map[string]interface{}) Event {
	return newEvent(TypeFeedbackSubmitted, data)
}

// NewReconcileRequired carries enough of the turn to replay its persistence later.
func NewReconcileRequired(data map[string]interface{}) Event {
	return newEvent(TypeReconcileRequired, data)
}
