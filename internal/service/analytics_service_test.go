package service

import (
	"testing"

	"plant-assistant-be/internal/dto"

	"github.com/stretchr/testify/assert"
)

func TestRankTopics(t *testing.T) {
	topics, plants := rankTopics(map[string]int{
		"watering":         4,
		"pest":             4,
		"lighting":         1,
		"fertilizing":      2,
		"repotting":        1,
		"diagnosis":        3,
		"ignored":          0,
		"species:pothos":   2,
		"species:monstera": 5,
	}, 5)

	assert.Equal(t, []dto.TopicCountResponse{
		{Topic: "pest", Count: 4},
		{Topic: "watering", Count: 4},
		{Topic: "diagnosis", Count: 3},
		{Topic: "fertilizing", Count: 2},
		{Topic: "lighting", Count: 1},
	}, topics)
	assert.Equal(t, []dto.TopicCountResponse{
		{Topic: "monstera", Count: 5},
		{Topic: "pothos", Count: 2},
	}, plants)

	t.Run("no counters", func(t *testing.T) {
		topics, plants := rankTopics(nil, 5)
		assert.Empty(t, topics)
		assert.NotNil(t, topics)
		assert.NotNil(t, plants)
	})
}
