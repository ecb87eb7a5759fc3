package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// MemoryRecord is keyed by the originating message id, so re-upserting overwrites in place.
type MemoryRecord struct {
	Id            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Namespace     string          `gorm:"type:varchar(64);not null;index"`
	ChatSessionId uuid.UUID       `gorm:"type:uuid;not null;index"`
	Content       string          `gorm:"type:text"`
	Role          string          `gorm:"type:varchar(20)"`
	Tags          datatypes.JSON  `gorm:"type:jsonb"`
	Vector        pgvector.Vector `gorm:"type:vector(768)"` // nomic-embed-text / text-embedding-004
	RecordedAt    time.Time       `gorm:"not null;index"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime"`
}

func (MemoryRecord) TableName() string {
	return "memory_records"
}
