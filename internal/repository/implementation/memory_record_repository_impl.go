package implementation

import (
	"context"
	"errors"

	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/mapper"
	"plant-assistant-be/internal/model"
	"plant-assistant-be/internal/repository/contract"
	"plant-assistant-be/internal/repository/specification"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MemoryRecordRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.MemoryRecordMapper
}

func NewMemoryRecordRepository(db *gorm.DB) contract.MemoryRecordRepository {
	return &MemoryRecordRepositoryImpl{
		db:     db,
		mapper: mapper.NewMemoryRecordMapper(),
	}
}

func (r *MemoryRecordRepositoryImpl) Upsert(ctx context.Context, record *entity.MemoryRecord) error {
	m := r.mapper.ToModel(record)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"namespace", "chat_session_id", "content", "role", "tags", "vector", "recorded_at", "updated_at"}),
		}).
		Create(m).Error
}

func (r *MemoryRecordRepositoryImpl) SearchSimilar(ctx context.Context, vector []float32, namespace string, limit int) ([]*entity.MemoryRecordMatch, error) {
	if limit <= 0 {
		limit = 5
	}

	// Cosine distance in pgvector is 1 - cosine_similarity
	type result struct {
		model.MemoryRecord
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(vector)

	err := r.db.WithContext(ctx).
		Table("memory_records").
		Select("memory_records.*, 1 - (vector <=> ?) as similarity", queryVector).
		Where("namespace = ?", namespace).
		Order("similarity DESC").
		Order("recorded_at DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	matches := make([]*entity.MemoryRecordMatch, len(results))
	for i, res := range results {
		matches[i] = &entity.MemoryRecordMatch{
			MemoryRecord: *r.mapper.ToEntity(&res.MemoryRecord),
			Similarity:   res.Similarity,
		}
	}
	return matches, nil
}

func (r *MemoryRecordRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.MemoryRecord, error) {
	var m model.MemoryRecord
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *MemoryRecordRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.MemoryRecord{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *MemoryRecordRepositoryImpl) Delete(ctx context.Context, specs ...specification.Specification) (bool, error) {
	if len(specs) == 0 {
		return false, errors.New("refusing to delete every memory record")
	}
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	res := query.Delete(&model.MemoryRecord{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
