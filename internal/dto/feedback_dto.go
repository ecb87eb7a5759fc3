package dto

import "github.com/google/uuid"

type SubmitFeedbackRequest struct {
	MessageId    uuid.UUID `json:"message_id" validate:"required"`
	Rating       int       `json:"rating" validate:"required,min=1,max=5"`
	FeedbackType string    `json:"feedback_type" validate:"required,oneof=helpful not_helpful incorrect other"`
	Comment      *string   `json:"comment,omitempty" validate:"omitempty,max=1000"`
}

type SubmitFeedbackResponse struct {
	FeedbackId uuid.UUID `json:"feedback_id"`
}
