package contract

import (
	"context"

	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ChatMessageRepository interface {
	CreateBulk(ctx context.Context, messages []*entity.ChatMessage) error
	// FindWindow returns the last n messages of a session, oldest first.
	FindWindow(ctx context.Context, sessionId uuid.UUID, n int) ([]*entity.ChatMessage, error)
	MaxSequence(ctx context.Context, sessionId uuid.UUID) (int, error)
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatMessage, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
