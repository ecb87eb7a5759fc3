package dto

import "time"

type KnowledgeDocumentRequest struct {
	Id        string `json:"id" validate:"omitempty,max=200"`
	Text      string `json:"text" validate:"required,min=1,max=8000"`
	Source    string `json:"source" validate:"omitempty,max=200"`
	Category  string `json:"category" validate:"omitempty,max=60"`
	PlantType string `json:"plant_type" validate:"omitempty,max=120"`
	CareType  string `json:"care_type" validate:"omitempty,max=60"`
	Season    string `json:"season" validate:"omitempty,max=30"`
}

type IndexKnowledgeRequest struct {
	Documents []KnowledgeDocumentRequest `json:"documents" validate:"required,min=1,max=100,dive"`
}

type IndexKnowledgeResponse struct {
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Total      int      `json:"total"`
	Ids        []string `json:"ids"`
}

type SearchKnowledgeRequest struct {
	Query          string   `json:"query" query:"query" validate:"required,min=1,max=1000"`
	Category       string   `json:"category" query:"category" validate:"omitempty,max=60"`
	PlantType      string   `json:"plant_type" query:"plant_type" validate:"omitempty,max=120"`
	TopK           int      `json:"top_k" query:"top_k" validate:"omitempty,min=1,max=50"`
	ScoreThreshold *float64 `json:"score_threshold" query:"score_threshold" validate:"omitempty,min=0,max=1"`
}

type KnowledgeHitResponse struct {
	Id        string    `json:"id"`
	Text      string    `json:"text"`
	Score     float32   `json:"score"`
	Source    string    `json:"source,omitempty"`
	Category  string    `json:"category,omitempty"`
	PlantType string    `json:"plant_type,omitempty"`
	CareType  string    `json:"care_type,omitempty"`
	Season    string    `json:"season,omitempty"`
	IndexedAt time.Time `json:"indexed_at"`
}

type SearchKnowledgeResponse struct {
	Query   string                 `json:"query"`
	Results []KnowledgeHitResponse `json:"results"`
	Total   int                    `json:"total_results"`
}

type KnowledgeStatsResponse struct {
	Namespace string `json:"namespace"`
	Documents int    `json:"documents"`
}
