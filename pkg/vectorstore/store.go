// Package vectorstore holds the long-term semantic memory contract and its backends.
package vectorstore

import (
	"context"
	"sort"
	"time"
)

// Metadata travels with every vector. UserID doubles as the namespace.
type Metadata struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	Timestamp time.Time `json:"timestamp"`
}

type Match struct {
	ID       string   `json:"id"`
	Score    float32  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// Store is idempotent by id: upserting the same id twice leaves one record.
type Store interface {
	Upsert(ctx context.Context, id string, vector []float32, metadata Metadata) error
	Query(ctx context.Context, vector []float32, namespace string, topK int) ([]Match, error)
}

// Catalog is a Store whose records can also be removed and counted per namespace.
// The plant knowledge base needs it; conversation memory never deletes.
type Catalog interface {
	Store
	Delete(ctx context.Context, namespace, id string) (bool, error)
	CountNamespace(ctx context.Context, namespace string) (int, error)
}

// Rank orders matches by score descending. Equal scores go to the newer record.
func Rank(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Metadata.Timestamp.After(matches[j].Metadata.Timestamp)
	})
}
