package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatMessage struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatSessionId  uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_chat_messages_session_seq,priority:1"`
	SequenceNumber int            `gorm:"not null;uniqueIndex:idx_chat_messages_session_seq,priority:2"`
	Role           string         `gorm:"type:varchar(20);not null"`
	Chat           string         `gorm:"type:text;not null"`
	Intent         string         `gorm:"type:varchar(50)"`
	Species        *string        `gorm:"type:varchar(255)"`
	Confidence     *float64       `gorm:"type:numeric(4,3)"`
	HasImage       bool           `gorm:"not null;default:false"`
	ImageUrl       *string        `gorm:"type:text"`
	Partial        bool           `gorm:"not null;default:false"`
	EmbeddingId    *uuid.UUID     `gorm:"type:uuid;index"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
