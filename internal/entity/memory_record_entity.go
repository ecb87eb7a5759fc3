package entity

import (
	"time"

	"github.com/google/uuid"
)

type MemoryRecord struct {
	Id            uuid.UUID
	Namespace     string
	ChatSessionId uuid.UUID
	Content       string
	Role          string
	Tags          []string
	Vector        []float32
	RecordedAt    time.Time
}

// MemoryRecordMatch is a MemoryRecord with its cosine similarity to the query.
type MemoryRecordMatch struct {
	MemoryRecord
	Similarity float64
}
