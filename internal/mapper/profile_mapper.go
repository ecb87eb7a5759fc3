package mapper

import (
	"encoding/json"
	"time"

	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/model"
)

type ProfileMapper struct{}

func NewProfileMapper() *ProfileMapper {
	return &ProfileMapper{}
}

func (m *ProfileMapper) ToEntity(p *model.UserProfile) *entity.UserProfile {
	if p == nil {
		return nil
	}

	var updatedAt *time.Time
	if !p.UpdatedAt.IsZero() {
		t := p.UpdatedAt
		updatedAt = &t
	}

	topics := map[string]int{}
	if len(p.TopicCounts) > 0 {
		_ = json.Unmarshal(p.TopicCounts, &topics)
	}

	var treatments []entity.TreatmentRecord
	if len(p.TreatmentHistory) > 0 {
		_ = json.Unmarshal(p.TreatmentHistory, &treatments)
	}

	return &entity.UserProfile{
		UserId:             p.UserId,
		ExperienceLevel:    p.ExperienceLevel,
		CommunicationStyle: p.CommunicationStyle,
		OwnedPlants:        decodeStrings(p.OwnedPlants),
		TopicCounts:        topics,
		TreatmentHistory:   treatments,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          updatedAt,
	}
}

func (m *ProfileMapper) ToModel(p *entity.UserProfile) *model.UserProfile {
	if p == nil {
		return nil
	}

	var updatedAt time.Time
	if p.UpdatedAt != nil {
		updatedAt = *p.UpdatedAt
	}

	plants := p.OwnedPlants
	if plants == nil {
		plants = []string{}
	}
	topics := p.TopicCounts
	if topics == nil {
		topics = map[string]int{}
	}
	treatments := p.TreatmentHistory
	if treatments == nil {
		treatments = []entity.TreatmentRecord{}
	}

	return &model.UserProfile{
		UserId:             p.UserId,
		ExperienceLevel:    p.ExperienceLevel,
		CommunicationStyle: p.CommunicationStyle,
		OwnedPlants:        encodeJSON(plants),
		TopicCounts:        encodeJSON(topics),
		TreatmentHistory:   encodeJSON(treatments),
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          updatedAt,
	}
}
