package entity

import (
	"time"

	"github.com/google/uuid"
)

type MessageFeedback struct {
	Id            uuid.UUID
	ChatMessageId uuid.UUID
	UserId        uuid.UUID
	Rating        int
	FeedbackType  string
	Comment       *string
	CreatedAt     time.Time
}
