package implementation

import (
	"context"

	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/mapper"
	"plant-assistant-be/internal/model"
	"plant-assistant-be/internal/repository/contract"
	"plant-assistant-be/internal/repository/specification"

	"gorm.io/gorm"
)

type MessageFeedbackRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewMessageFeedbackRepository(db *gorm.DB) contract.MessageFeedbackRepository {
	return &MessageFeedbackRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *MessageFeedbackRepositoryImpl) Create(ctx context.Context, feedback *entity.MessageFeedback) error {
	m := r.mapper.FeedbackToModel(feedback)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*feedback = *r.mapper.FeedbackToEntity(m)
	return nil
}

func (r *MessageFeedbackRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.MessageFeedback, error) {
	var models []*model.MessageFeedback
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.MessageFeedback, len(models))
	for i, m := range models {
		entities[i] = r.mapper.FeedbackToEntity(m)
	}
	return entities, nil
}

func (r *MessageFeedbackRepositoryImpl) RatingSummary(ctx context.Context, specs ...specification.Specification) (int64, float64, error) {
	var row struct {
		Ratings int64
		Average float64
	}
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.MessageFeedback{}), specs...)
	err := query.Select("COUNT(*) AS ratings, COALESCE(AVG(rating), 0) AS average").Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Ratings, row.Average, nil
}
