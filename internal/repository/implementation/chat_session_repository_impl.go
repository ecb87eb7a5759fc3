package implementation

import (
	"context"
	"errors"

	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/mapper"
	"plant-assistant-be/internal/model"
	"plant-assistant-be/internal/repository/contract"
	"plant-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewChatSessionRepository(db *gorm.DB) contract.ChatSessionRepository {
	return &ChatSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatSessionRepositoryImpl) Create(ctx context.Context, session *entity.ChatSession) error {
	m := r.mapper.ChatSessionToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	// picks up the generated id and timestamps
	*session = *r.mapper.ChatSessionToEntity(m)
	return nil
}

// Update writes the columns a turn changes. The reconcile columns are left to
// MarkReconcile and ResolveReconcile so a concurrent flag is never overwritten.
func (r *ChatSessionRepositoryImpl) Update(ctx context.Context, session *entity.ChatSession) error {
	m := r.mapper.ChatSessionToModel(session)
	return r.db.WithContext(ctx).
		Model(&model.ChatSession{Id: session.Id}).
		Select("title", "message_count", "last_activity_at", "tags", "updated_at").
		Updates(m).Error
}

// MarkReconcile records one more piece of pending repair work for the session.
func (r *ChatSessionRepositoryImpl) MarkReconcile(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.ChatSession{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"reconcile_count": gorm.Expr("reconcile_count + 1"),
			"needs_reconcile": true,
		}).Error
}

// ResolveReconcile settles one piece of pending work. The flag drops only when
// nothing is left; the right-hand sides read the pre-update count.
func (r *ChatSessionRepositoryImpl) ResolveReconcile(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.ChatSession{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"reconcile_count": gorm.Expr("GREATEST(reconcile_count - 1, 0)"),
			"needs_reconcile": gorm.Expr("reconcile_count > 1"),
		}).Error
}

func (r *ChatSessionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatSession, error) {
	var m model.ChatSession
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ChatSessionToEntity(&m), nil
}

func (r *ChatSessionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatSession, error) {
	var models []*model.ChatSession
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.ChatSession, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ChatSessionToEntity(m)
	}
	return entities, nil
}

func (r *ChatSessionRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.ChatSession{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ChatSessionRepositoryImpl) SumMessageCount(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var total int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.ChatSession{}), specs...)
	if err := query.Select("COALESCE(SUM(message_count), 0)").Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
