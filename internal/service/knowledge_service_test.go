package service

import (
	"context"
	"errors"
	"testing"

	"plant-assistant-be/internal/dto"
	"plant-assistant-be/pkg/knowledge"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKnowledgeBase struct {
	queries []knowledge.SearchQuery
	hits    []knowledge.Hit
	indexed []knowledge.Document
	docs    map[string]bool
}

func (f *fakeKnowledgeBase) Index(ctx context.Context, docs []knowledge.Document) knowledge.IndexResult {
	f.indexed = append(f.indexed, docs...)
	res := knowledge.IndexResult{Total: len(docs)}
	for _, d := range docs {
		if d.Text == "" {
			res.Failed++
			continue
		}
		res.Successful++
		res.IDs = append(res.IDs, knowledge.DocumentID(d.ID))
	}
	return res
}

func (f *fakeKnowledgeBase) Search(ctx context.Context, q knowledge.SearchQuery) ([]knowledge.Hit, error) {
	if q.Query == " " {
		return nil, knowledge.ErrEmptyQuery
	}
	f.queries = append(f.queries, q)
	return f.hits, nil
}

func (f *fakeKnowledgeBase) Delete(ctx context.Context, ref string) (bool, error) {
	found := f.docs[ref]
	delete(f.docs, ref)
	return found, nil
}

func (f *fakeKnowledgeBase) Count(ctx context.Context) (int, error) {
	return len(f.docs), nil
}

func statusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return 0
}

func TestKnowledgeServiceSearch(t *testing.T) {
	ctx := context.Background()
	base := &fakeKnowledgeBase{hits: []knowledge.Hit{{ID: "a", Text: "Water weekly.", Score: 0.9, Category: "care"}}}
	svc := NewKnowledgeService(base)

	t.Run("defaults", func(t *testing.T) {
		res, err := svc.Search(ctx, &dto.SearchKnowledgeRequest{Query: "watering"})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Total)
		assert.Equal(t, "care", res.Results[0].Category)

		q := base.queries[len(base.queries)-1]
		assert.Equal(t, defaultKnowledgeTopK, q.TopK)
		assert.InDelta(t, defaultKnowledgeThreshold, q.ScoreThreshold, 1e-6)
	})

	t.Run("explicit zero threshold is kept", func(t *testing.T) {
		zero := 0.0
		_, err := svc.Search(ctx, &dto.SearchKnowledgeRequest{Query: "watering", TopK: 3, ScoreThreshold: &zero})
		require.NoError(t, err)

		q := base.queries[len(base.queries)-1]
		assert.Equal(t, 3, q.TopK)
		assert.Zero(t, q.ScoreThreshold)
	})

	t.Run("blank query", func(t *testing.T) {
		_, err := svc.Search(ctx, &dto.SearchKnowledgeRequest{Query: " "})
		assert.Equal(t, fiber.StatusBadRequest, statusOf(err))
	})
}

func TestKnowledgeServiceIndexAndDelete(t *testing.T) {
	ctx := context.Background()
	base := &fakeKnowledgeBase{docs: map[string]bool{"guide-1": true}}
	svc := NewKnowledgeService(base)

	res, err := svc.Index(ctx, &dto.IndexKnowledgeRequest{Documents: []dto.KnowledgeDocumentRequest{
		{Id: "guide-2", Text: "Mist ferns in dry rooms.", PlantType: "fern"},
		{Id: "guide-3"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Successful)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "fern", base.indexed[0].PlantType)

	_, err = svc.Index(ctx, &dto.IndexKnowledgeRequest{Documents: []dto.KnowledgeDocumentRequest{{Id: "empty"}}})
	assert.Equal(t, fiber.StatusBadGateway, statusOf(err))

	require.NoError(t, svc.Delete(ctx, "guide-1"))
	assert.Equal(t, fiber.StatusNotFound, statusOf(svc.Delete(ctx, "guide-1")))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, knowledge.Namespace, stats.Namespace)
	assert.Zero(t, stats.Documents)
}
