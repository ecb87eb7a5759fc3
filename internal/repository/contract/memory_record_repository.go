package contract

import (
	"context"

	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/repository/specification"
)

type MemoryRecordRepository interface {
	// Upsert inserts or overwrites the record with the same id.
	Upsert(ctx context.Context, record *entity.MemoryRecord) error
	SearchSimilar(ctx context.Context, vector []float32, namespace string, limit int) ([]*entity.MemoryRecordMatch, error)
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.MemoryRecord, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// Delete removes the matching records and reports whether any existed.
	Delete(ctx context.Context, specs ...specification.Specification) (bool, error)
}
