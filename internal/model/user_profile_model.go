package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type UserProfile struct {
	UserId             uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ExperienceLevel    string         `gorm:"type:varchar(20)"`
	CommunicationStyle string         `gorm:"type:varchar(20)"`
	OwnedPlants        datatypes.JSON `gorm:"type:jsonb"`
	TopicCounts        datatypes.JSON `gorm:"type:jsonb"`
	TreatmentHistory   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt          time.Time      `gorm:"autoCreateTime"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}
