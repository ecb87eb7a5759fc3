package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"plant-assistant-be/internal/dto"
	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/repository/specification"
	"plant-assistant-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

const (
	activeSessionWindow = 7 * 24 * time.Hour
	commonTopicLimit    = 5
	speciesTopicPrefix  = "species:"
)

type IAnalyticsService interface {
	Get(ctx context.Context, userId uuid.UUID) (*dto.ChatAnalyticsResponse, error)
}

type profileSource interface {
	GetProfile(ctx context.Context, userId uuid.UUID) (*entity.UserProfile, error)
}

type analyticsService struct {
	uowFactory unitofwork.RepositoryFactory
	profiles   profileSource
	now        func() time.Time
}

func NewAnalyticsService(uowFactory unitofwork.RepositoryFactory, profiles profileSource) IAnalyticsService {
	return &analyticsService{uowFactory: uowFactory, profiles: profiles, now: time.Now}
}

// Get summarises the user's conversations. Topics come from the profile's counters,
// satisfaction from the ratings the user left; it is null until the first rating.
func (as *analyticsService) Get(ctx context.Context, userId uuid.UUID) (*dto.ChatAnalyticsResponse, error) {
	uow := as.uowFactory.NewUnitOfWork(ctx)
	owned := specification.UserOwnedBy{UserID: userId}

	total, err := uow.ChatSessionRepository().Count(ctx, owned)
	if err != nil {
		return nil, err
	}
	active, err := uow.ChatSessionRepository().Count(ctx, owned,
		specification.ActiveSince{Since: as.now().Add(-activeSessionWindow)})
	if err != nil {
		return nil, err
	}
	messages, err := uow.ChatSessionRepository().SumMessageCount(ctx, owned)
	if err != nil {
		return nil, err
	}
	ratings, average, err := uow.MessageFeedbackRepository().RatingSummary(ctx, owned)
	if err != nil {
		return nil, err
	}
	profile, err := as.profiles.GetProfile(ctx, userId)
	if err != nil {
		return nil, err
	}

	res := &dto.ChatAnalyticsResponse{
		TotalSessions:  total,
		ActiveSessions: active,
		TotalMessages:  messages,
		CommonTopics:   []dto.TopicCountResponse{},
		CommonPlants:   []dto.TopicCountResponse{},
	}
	if total > 0 {
		res.AvgMessagesPerSession = float64(messages) / float64(total)
	}
	if ratings > 0 {
		res.Satisfaction = &dto.SatisfactionResponse{AverageRating: average, Ratings: ratings}
	}
	if profile != nil {
		res.CommonTopics, res.CommonPlants = rankTopics(profile.TopicCounts, commonTopicLimit)
	}
	return res, nil
}

// rankTopics splits intent counters from species counters and keeps the most frequent
// of each. Ties go to the alphabetically first topic so the output is stable.
func rankTopics(counts map[string]int, limit int) (topics, plants []dto.TopicCountResponse) {
	topics, plants = []dto.TopicCountResponse{}, []dto.TopicCountResponse{}
	for topic, n := range counts {
		if n <= 0 {
			continue
		}
		if species, ok := strings.CutPrefix(topic, speciesTopicPrefix); ok {
			plants = append(plants, dto.TopicCountResponse{Topic: species, Count: n})
		} else {
			topics = append(topics, dto.TopicCountResponse{Topic: topic, Count: n})
		}
	}
	return topN(topics, limit), topN(plants, limit)
}

func topN(items []dto.TopicCountResponse, limit int) []dto.TopicCountResponse {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Topic < items[j].Topic
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
