package service

import (
	"context"

	"plant-assistant-be/internal/dto"
	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/repository/memory"

	"github.com/google/uuid"
)

type IProfileService interface {
	Get(ctx context.Context, userId uuid.UUID) (*dto.ProfileResponse, error)
}

type profileService struct {
	store *ConversationStore
	cache *memory.ProfileCache
}

func NewProfileService(store *ConversationStore, cache *memory.ProfileCache) IProfileService {
	return &profileService{store: store, cache: cache}
}

// Get returns the profile snapshot. A user with no turns yet gets an empty profile.
func (ps *profileService) Get(ctx context.Context, userId uuid.UUID) (*dto.ProfileResponse, error) {
	profile, ok := ps.cache.Get(userId)
	if !ok {
		var err error
		profile, err = ps.store.GetProfile(ctx, userId)
		if err != nil {
			return nil, err
		}
		if profile != nil {
			ps.cache.Save(profile)
		}
	}
	if profile == nil {
		profile = &entity.UserProfile{UserId: userId}
	}

	res := &dto.ProfileResponse{
		UserId:             profile.UserId,
		ExperienceLevel:    profile.ExperienceLevel,
		CommunicationStyle: profile.CommunicationStyle,
		OwnedPlants:        nonNil(profile.OwnedPlants),
		TopicCounts:        profile.TopicCounts,
		TreatmentHistory:   make([]dto.TreatmentResponse, 0, len(profile.TreatmentHistory)),
		UpdatedAt:          profile.UpdatedAt,
	}
	if res.TopicCounts == nil {
		res.TopicCounts = map[string]int{}
	}
	for _, t := range profile.TreatmentHistory {
		res.TreatmentHistory = append(res.TreatmentHistory, dto.TreatmentResponse(t))
	}
	return res, nil
}
