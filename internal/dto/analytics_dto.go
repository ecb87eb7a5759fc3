package dto

type TopicCountResponse struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

type SatisfactionResponse struct {
	AverageRating float64 `json:"average_rating"`
	Ratings       int64   `json:"ratings"`
}

type ChatAnalyticsResponse struct {
	TotalSessions         int64                 `json:"total_sessions"`
	ActiveSessions        int64                 `json:"active_sessions"`
	TotalMessages         int64                 `json:"total_messages"`
	AvgMessagesPerSession float64               `json:"avg_messages_per_session"`
	CommonTopics          []TopicCountResponse  `json:"common_topics"`
	CommonPlants          []TopicCountResponse  `json:"common_plants"`
	Satisfaction          *SatisfactionResponse `json:"user_satisfaction"`
}
