package service

import (
	"context"
	"errors"

	"plant-assistant-be/internal/dto"
	"plant-assistant-be/pkg/knowledge"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultKnowledgeTopK      = 10
	defaultKnowledgeThreshold = 0.7
)

type IKnowledgeService interface {
	Index(ctx context.Context, request *dto.IndexKnowledgeRequest) (*dto.IndexKnowledgeResponse, error)
	Search(ctx context.Context, request *dto.SearchKnowledgeRequest) (*dto.SearchKnowledgeResponse, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*dto.KnowledgeStatsResponse, error)
}

type knowledgeBase interface {
	Index(ctx context.Context, docs []knowledge.Document) knowledge.IndexResult
	Search(ctx context.Context, q knowledge.SearchQuery) ([]knowledge.Hit, error)
	Delete(ctx context.Context, ref string) (bool, error)
	Count(ctx context.Context) (int, error)
}

type knowledgeService struct {
	base knowledgeBase
}

func NewKnowledgeService(base knowledgeBase) IKnowledgeService {
	return &knowledgeService{base: base}
}

func (ks *knowledgeService) Index(ctx context.Context, request *dto.IndexKnowledgeRequest) (*dto.IndexKnowledgeResponse, error) {
	docs := make([]knowledge.Document, len(request.Documents))
	for i, d := range request.Documents {
		docs[i] = knowledge.Document{
			ID:        d.Id,
			Text:      d.Text,
			Source:    d.Source,
			Category:  d.Category,
			PlantType: d.PlantType,
			CareType:  d.CareType,
			Season:    d.Season,
		}
	}

	res := ks.base.Index(ctx, docs)
	if res.Successful == 0 && res.Total > 0 {
		return nil, fiber.NewError(fiber.StatusBadGateway, "No document could be indexed")
	}
	return &dto.IndexKnowledgeResponse{
		Successful: res.Successful,
		Failed:     res.Failed,
		Total:      res.Total,
		Ids:        res.IDs,
	}, nil
}

func (ks *knowledgeService) Search(ctx context.Context, request *dto.SearchKnowledgeRequest) (*dto.SearchKnowledgeResponse, error) {
	q := knowledge.SearchQuery{
		Query:          request.Query,
		Category:       request.Category,
		PlantType:      request.PlantType,
		TopK:           request.TopK,
		ScoreThreshold: defaultKnowledgeThreshold,
	}
	if q.TopK == 0 {
		q.TopK = defaultKnowledgeTopK
	}
	if request.ScoreThreshold != nil {
		q.ScoreThreshold = float32(*request.ScoreThreshold)
	}

	hits, err := ks.base.Search(ctx, q)
	if errors.Is(err, knowledge.ErrEmptyQuery) {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Query must not be blank")
	}
	if err != nil {
		return nil, err
	}

	res := &dto.SearchKnowledgeResponse{
		Query:   request.Query,
		Results: make([]dto.KnowledgeHitResponse, 0, len(hits)),
		Total:   len(hits),
	}
	for _, h := range hits {
		res.Results = append(res.Results, dto.KnowledgeHitResponse{
			Id:        h.ID,
			Text:      h.Text,
			Score:     h.Score,
			Source:    h.Source,
			Category:  h.Category,
			PlantType: h.PlantType,
			CareType:  h.CareType,
			Season:    h.Season,
			IndexedAt: h.IndexedAt,
		})
	}
	return res, nil
}

func (ks *knowledgeService) Delete(ctx context.Context, id string) error {
	found, err := ks.base.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fiber.NewError(fiber.StatusNotFound, "Knowledge document not found")
	}
	return nil
}

func (ks *knowledgeService) Stats(ctx context.Context) (*dto.KnowledgeStatsResponse, error) {
	n, err := ks.base.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.KnowledgeStatsResponse{Namespace: knowledge.Namespace, Documents: n}, nil
}
