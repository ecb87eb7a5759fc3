package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestOllamaProvider_Generate(t *testing.T) {
	var prompts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompts = append(prompts, req.Prompt)
		json.NewEncoder(w).Encode(ollamaEmbeddingResponse{Embedding: []float64{3, 4}})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL+"/", "nomic-embed-text")

	out, err := p.Generate(context.Background(), "yellow leaves", TaskRetrievalQuery)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, out.Embedding.Values[0], 1e-6)
	assert.InDelta(t, 0.8, out.Embedding.Values[1], 1e-6)

	_, err = p.Generate(context.Background(), "yellow leaves", TaskRetrievalDocument)
	require.NoError(t, err)

	assert.Equal(t, []string{"search_query: yellow leaves", "search_document: yellow leaves"}, prompts)
}

func TestOllamaProvider_PlainModelKeepsText(t *testing.T) {
	p := &OllamaProvider{Model: "mxbai-embed-large"}
	assert.Equal(t, "hello", p.prompt("hello", TaskRetrievalQuery))
}

func TestOllamaProvider_Errors(t *testing.T) {
	t.Run("non 200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := NewOllamaProvider(srv.URL, "").Generate(context.Background(), "x", TaskRetrievalQuery)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("empty vector", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"embedding":[]}`))
		}))
		defer srv.Close()

		_, err := NewOllamaProvider(srv.URL, "").Generate(context.Background(), "x", TaskRetrievalQuery)
		assert.ErrorIs(t, err, ErrEmptyEmbedding)
	})
}

func TestGeminiProvider_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/text-embedding-004:embedContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))

		var req geminiEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, TaskRetrievalDocument, req.TaskType)
		assert.Equal(t, Dimensions, req.OutputDimensionality)
		assert.Equal(t, "monstera care", req.Content.Parts[0].Text)

		w.Write([]byte(`{"embedding":{"values":[1,1,1,1]}}`))
	}))
	defer srv.Close()

	p := &GeminiProvider{ApiKey: "secret", BaseURL: srv.URL}
	out, err := p.Generate(context.Background(), "monstera care", TaskRetrievalDocument)

	require.NoError(t, err)
	assert.Len(t, out.Embedding.Values, 4)
	assert.InDelta(t, 1.0, magnitude(out.Embedding.Values), 1e-6)
}

func TestNormalizeVector_Zero(t *testing.T) {
	assert.Equal(t, []float32{0, 0}, normalizeVector([]float32{0, 0}))
}
