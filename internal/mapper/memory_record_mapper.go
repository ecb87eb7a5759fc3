package mapper

import (
	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/model"

	"github.com/pgvector/pgvector-go"
)

type MemoryRecordMapper struct{}

func NewMemoryRecordMapper() *MemoryRecordMapper {
	return &MemoryRecordMapper{}
}

func (m *MemoryRecordMapper) ToEntity(r *model.MemoryRecord) *entity.MemoryRecord {
	if r == nil {
		return nil
	}
	return &entity.MemoryRecord{
		Id:            r.Id,
		Namespace:     r.Namespace,
		ChatSessionId: r.ChatSessionId,
		Content:       r.Content,
		Role:          r.Role,
		Tags:          decodeStrings(r.Tags),
		Vector:        r.Vector.Slice(),
		RecordedAt:    r.RecordedAt,
	}
}

func (m *MemoryRecordMapper) ToModel(r *entity.MemoryRecord) *model.MemoryRecord {
	if r == nil {
		return nil
	}
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return &model.MemoryRecord{
		Id:            r.Id,
		Namespace:     r.Namespace,
		ChatSessionId: r.ChatSessionId,
		Content:       r.Content,
		Role:          r.Role,
		Tags:          encodeJSON(tags),
		Vector:        pgvector.NewVector(r.Vector),
		RecordedAt:    r.RecordedAt,
	}
}
