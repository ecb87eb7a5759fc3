package dto

import (
	"time"

	"github.com/google/uuid"
)

type ListSessionsRequest struct {
	Limit  int `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset int `query:"offset" validate:"omitempty,min=0"`
}

type UpdateSessionRequest struct {
	Title string `json:"title" validate:"required,min=1,max=120"`
}

type SessionSummaryResponse struct {
	SessionId    uuid.UUID `json:"session_id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	LastActivity time.Time `json:"last_activity"`
	Tags         []string  `json:"tags"`
}

type SessionMessageResponse struct {
	Id             uuid.UUID `json:"id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	SequenceNumber int       `json:"sequence_number"`
	Species        *string   `json:"species,omitempty"`
	Confidence     *float64  `json:"confidence,omitempty"`
	HasImage       bool      `json:"has_image"`
	ImageUrl       *string   `json:"image_url,omitempty"`
	Intent         string    `json:"intent,omitempty"`
	Partial        bool      `json:"partial"`
	CreatedAt      time.Time `json:"created_at"`
}

type SessionDetailResponse struct {
	SessionSummaryResponse
	CreatedAt time.Time                 `json:"created_at"`
	Messages  []*SessionMessageResponse `json:"messages"`
}
