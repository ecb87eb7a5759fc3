package contract

import (
	"context"

	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ChatSessionRepository interface {
	Create(ctx context.Context, session *entity.ChatSession) error
	Update(ctx context.Context, session *entity.ChatSession) error
	MarkReconcile(ctx context.Context, id uuid.UUID) error
	ResolveReconcile(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatSession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatSession, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	SumMessageCount(ctx context.Context, specs ...specification.Specification) (int64, error)
}
