package contract

import (
	"context"

	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/repository/specification"
)

type MessageFeedbackRepository interface {
	Create(ctx context.Context, feedback *entity.MessageFeedback) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.MessageFeedback, error)
	// RatingSummary returns how many ratings match and their mean (0 when there are none).
	RatingSummary(ctx context.Context, specs ...specification.Specification) (int64, float64, error)
}
