package memory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"plant-assistant-be/internal/entity"
	"plant-assistant-be/pkg/events"

	"github.com/google/uuid"
)

// ErrDuplicateTurn means the turn's messages already exist. Replays treat it as success.
var ErrDuplicateTurn = errors.New("turn already persisted")

// Turn is one exchange ready for the relational store. Message ids are assigned
// up front so a replay is idempotent; sequence numbers are assigned by the store.
type Turn struct {
	SessionID uuid.UUID             `json:"session_id"`
	UserID    uuid.UUID             `json:"user_id"`
	Messages  []*entity.ChatMessage `json:"messages"`
	Tags      []string              `json:"tags"`
	Title     string                `json:"title"`
	At        time.Time             `json:"at"`
}

// ConversationStore is the relational side of memory.
type ConversationStore interface {
	// AppendTurn assigns the next gapless sequence numbers and stores the messages in one transaction,
	// bumping the session counters, merging tags and setting the title if the session has none yet.
	AppendTurn(ctx context.Context, turn *Turn) error
	FetchWindow(ctx context.Context, sessionID uuid.UUID, n int) ([]*entity.ChatMessage, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*entity.UserProfile, error)
	// UpsertProfile merges the delta under a row lock, creating the profile on first use.
	UpsertProfile(ctx context.Context, delta entity.ProfileDelta) (*entity.UserProfile, error)
	MarkReconcile(ctx context.Context, sessionID uuid.UUID) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// ReembedJob is queued when a vector upsert fails after the relational commit.
type ReembedJob struct {
	MessageID uuid.UUID `json:"message_id"`
	SessionID uuid.UUID `json:"session_id"`
	UserID    uuid.UUID `json:"user_id"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	At        time.Time `json:"at"`
	Attempt   int       `json:"attempt"`
}

type ReembedQueue interface {
	Enqueue(ctx context.Context, job ReembedJob) error
}

type ProfileSnapshots interface {
	Save(profile *entity.UserProfile)
	Delete(userID uuid.UUID)
}

// TurnPayload flattens a turn into an event payload.
func TurnPayload(turn *Turn) map[string]interface{} {
	raw, err := json.Marshal(turn)
	if err != nil {
		return map[string]interface{}{"session_id": turn.SessionID.String()}
	}
	var out map[string]interface{}
	_ = json.Unmarshal(raw, &out)
	return out
}

// TurnFromPayload is the inverse of TurnPayload.
func TurnFromPayload(payload map[string]interface{}) (*Turn, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var turn Turn
	if err := json.Unmarshal(raw, &turn); err != nil {
		return nil, err
	}
	if turn.SessionID == uuid.Nil || len(turn.Messages) == 0 {
		return nil, errors.New("payload is not a turn")
	}
	return &turn, nil
}
