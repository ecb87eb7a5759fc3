package vectorstore

import (
	"context"
	"fmt"

	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/repository/specification"
	"plant-assistant-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// RepositoryStore keeps vectors in postgres (pgvector) through the memory record repository.
type RepositoryStore struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewRepositoryStore(uowFactory unitofwork.RepositoryFactory) *RepositoryStore {
	return &RepositoryStore{uowFactory: uowFactory}
}

func (s *RepositoryStore) Upsert(ctx context.Context, id string, vector []float32, md Metadata) error {
	recordId, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("vectorstore: invalid record id %q: %w", id, err)
	}
	// knowledge documents belong to no session
	sessionId := uuid.Nil
	if md.SessionID != "" {
		if sessionId, err = uuid.Parse(md.SessionID); err != nil {
			return fmt.Errorf("vectorstore: invalid session id %q: %w", md.SessionID, err)
		}
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.MemoryRecordRepository().Upsert(ctx, &entity.MemoryRecord{
		Id:            recordId,
		Namespace:     md.UserID,
		ChatSessionId: sessionId,
		Content:       md.Content,
		Role:          md.Role,
		Tags:          md.Tags,
		Vector:        vector,
		RecordedAt:    md.Timestamp,
	})
}

func (s *RepositoryStore) Query(ctx context.Context, vector []float32, namespace string, topK int) ([]Match, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	records, err := uow.MemoryRecordRepository().SearchSimilar(ctx, vector, namespace, topK)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, len(records))
	for i, r := range records {
		matches[i] = Match{
			ID:    r.Id.String(),
			Score: float32(r.Similarity),
			Metadata: Metadata{
				UserID:    r.Namespace,
				SessionID: r.ChatSessionId.String(),
				Role:      r.Role,
				Content:   r.Content,
				Tags:      r.Tags,
				Timestamp: r.RecordedAt,
			},
		}
	}
	Rank(matches)
	return matches, nil
}

func (s *RepositoryStore) Delete(ctx context.Context, namespace, id string) (bool, error) {
	recordId, err := uuid.Parse(id)
	if err != nil {
		return false, nil
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.MemoryRecordRepository().Delete(ctx,
		specification.ByID{ID: recordId},
		specification.ByNamespace{Namespace: namespace},
	)
}

func (s *RepositoryStore) CountNamespace(ctx context.Context, namespace string) (int, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	n, err := uow.MemoryRecordRepository().Count(ctx, specification.ByNamespace{Namespace: namespace})
	return int(n), err
}
