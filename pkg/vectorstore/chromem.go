package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
)

var errNoEmbedder = errors.New("vectorstore: vectors must be supplied by the caller")

// ChromemStore is an in-process Store with one collection per namespace.
type ChromemStore struct {
	mu sync.RWMutex
	db *chromem.DB
}

// NewChromemStore opens a persistent store under dir, or a memory-only one when dir is empty.
func NewChromemStore(dir string) (*ChromemStore, error) {
	if dir == "" {
		return &ChromemStore{db: chromem.NewDB()}, nil
	}
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open vectorstore: %w", err)
	}
	return &ChromemStore{db: db}, nil
}

func collectionName(namespace string) string {
	return "user_" + namespace
}

func noEmbed(ctx context.Context, text string) ([]float32, error) {
	return nil, errNoEmbedder
}

func (s *ChromemStore) collection(namespace string, create bool) (*chromem.Collection, error) {
	name := collectionName(namespace)
	if col := s.db.GetCollection(name, noEmbed); col != nil || !create {
		return col, nil
	}
	return s.db.CreateCollection(name, nil, noEmbed)
}

func (s *ChromemStore) Upsert(ctx context.Context, id string, vector []float32, md Metadata) error {
	if md.UserID == "" {
		return fmt.Errorf("vectorstore: namespace is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.collection(md.UserID, true)
	if err != nil {
		return fmt.Errorf("vectorstore: collection for %s: %w", md.UserID, err)
	}

	// AddDocument overwrites an existing document with the same ID
	return col.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   md.Content,
		Embedding: vector,
		Metadata: map[string]string{
			"user_id":    md.UserID,
			"session_id": md.SessionID,
			"role":       md.Role,
			"tags":       strings.Join(md.Tags, ","),
			"timestamp":  md.Timestamp.UTC().Format(time.RFC3339Nano),
		},
	})
}

func (s *ChromemStore) Query(ctx context.Context, vector []float32, namespace string, topK int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, err := s.collection(namespace, false)
	if err != nil || col == nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 || topK <= 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := col.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: query %s: %w", namespace, err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		ts, _ := time.Parse(time.RFC3339Nano, r.Metadata["timestamp"])
		var tags []string
		if t := r.Metadata["tags"]; t != "" {
			tags = strings.Split(t, ",")
		}
		matches = append(matches, Match{
			ID:    r.ID,
			Score: r.Similarity,
			Metadata: Metadata{
				UserID:    r.Metadata["user_id"],
				SessionID: r.Metadata["session_id"],
				Role:      r.Metadata["role"],
				Content:   r.Content,
				Tags:      tags,
				Timestamp: ts,
			},
		})
	}
	Rank(matches)
	return matches, nil
}

// Delete removes one record and reports whether it existed.
func (s *ChromemStore) Delete(ctx context.Context, namespace, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.collection(namespace, false)
	if err != nil || col == nil {
		return false, err
	}
	if _, err := col.GetByID(ctx, id); err != nil {
		return false, nil
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return false, fmt.Errorf("vectorstore: delete %s from %s: %w", id, namespace, err)
	}
	return true, nil
}

func (s *ChromemStore) CountNamespace(ctx context.Context, namespace string) (int, error) {
	return s.Count(namespace), nil
}

// Count reports how many records a namespace holds.
func (s *ChromemStore) Count(namespace string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, _ := s.collection(namespace, false)
	if col == nil {
		return 0
	}
	return col.Count()
}
