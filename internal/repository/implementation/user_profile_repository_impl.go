package implementation

import (
	"context"
	"errors"

	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/mapper"
	"plant-assistant-be/internal/model"
	"plant-assistant-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserProfileRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ProfileMapper
}

func NewUserProfileRepository(db *gorm.DB) contract.UserProfileRepository {
	return &UserProfileRepositoryImpl{
		db:     db,
		mapper: mapper.NewProfileMapper(),
	}
}

func (r *UserProfileRepositoryImpl) FindByUserId(ctx context.Context, userId uuid.UUID, forUpdate bool) (*entity.UserProfile, error) {
	var m model.UserProfile
	query := r.db.WithContext(ctx)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := query.Where("user_id = ?", userId).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

// CreateEmpty inserts a blank profile unless the user already has one. A concurrent
// insert for the same user blocks here until the other transaction finishes.
func (r *UserProfileRepositoryImpl) CreateEmpty(ctx context.Context, userId uuid.UUID) error {
	m := r.mapper.ToModel(&entity.UserProfile{UserId: userId})
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(m).Error
}

// Save inserts the profile or overwrites the existing row for the same user.
func (r *UserProfileRepositoryImpl) Save(ctx context.Context, profile *entity.UserProfile) error {
	m := r.mapper.ToModel(profile)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"experience_level", "communication_style", "owned_plants",
				"topic_counts", "treatment_history", "updated_at",
			}),
		}).
		Create(m).Error
	if err != nil {
		return err
	}
	*profile = *r.mapper.ToEntity(m)
	return nil
}
