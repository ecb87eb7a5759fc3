package entity

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is immutable once persisted. SequenceNumber is assigned by the store.
type ChatMessage struct {
	Id             uuid.UUID
	ChatSessionId  uuid.UUID
	SequenceNumber int
	Role           string
	Chat           string
	Intent         string
	Species        *string
	Confidence     *float64
	HasImage       bool
	ImageUrl       *string
	Partial        bool
	EmbeddingId    *uuid.UUID
	CreatedAt      time.Time
}
