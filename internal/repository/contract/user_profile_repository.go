package contract

import (
	"context"

	"plant-assistant-be/internal/entity"

	"github.com/google/uuid"
)

type UserProfileRepository interface {
	FindByUserId(ctx context.Context, userId uuid.UUID, forUpdate bool) (*entity.UserProfile, error)
	CreateEmpty(ctx context.Context, userId uuid.UUID) error
	Save(ctx context.Context, profile *entity.UserProfile) error
}
