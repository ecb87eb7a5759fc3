package dto

import (
	"time"

	"github.com/google/uuid"
)

type TreatmentResponse struct {
	Species   string    `json:"species"`
	Condition string    `json:"condition"`
	Treatment string    `json:"treatment"`
	SessionId uuid.UUID `json:"session_id"`
	At        time.Time `json:"at"`
}

type ProfileResponse struct {
	UserId             uuid.UUID           `json:"user_id"`
	ExperienceLevel    string              `json:"experience_level"`
	CommunicationStyle string              `json:"communication_style"`
	OwnedPlants        []string            `json:"owned_plants"`
	TopicCounts        map[string]int      `json:"topic_counts"`
	TreatmentHistory   []TreatmentResponse `json:"treatment_history"`
	UpdatedAt          *time.Time          `json:"updated_at,omitempty"`
}
