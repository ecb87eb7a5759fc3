package embedding

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"
)

// Task types understood by Gemini. Ollama maps them onto nomic task prefixes.
const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// Dimensions matches the vector(768) column; both providers are configured to produce it.
const Dimensions = 768

var ErrEmptyEmbedding = errors.New("embedding provider returned no values")

// EmbeddingProvider turns a message into a unit-length vector.
type EmbeddingProvider interface {
	Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error)
}

type EmbeddingResponseEmbedding struct {
	Values []float32 `json:"values"`
}

type EmbeddingResponse struct {
	Embedding EmbeddingResponseEmbedding `json:"embedding"`
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

func newResponse(values []float32) (*EmbeddingResponse, error) {
	if len(values) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return &EmbeddingResponse{Embedding: EmbeddingResponseEmbedding{Values: normalizeVector(values)}}, nil
}

// normalizeVector scales to unit length so cosine distance in both vector stores agrees.
func normalizeVector(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)
	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}
