package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"plant-assistant-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamServer(t *testing.T, chunks []string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if !req.Stream {
			json.NewEncoder(w).Encode(ollamaChatResponse{
				Message: ollamaMessage{Role: "assistant", Content: strings.Join(chunks, "")},
				Done:    true,
			})
			return
		}

		flusher := w.(http.Flusher)
		for _, c := range chunks {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", c)
			flusher.Flush()
		}
		fmt.Fprint(w, `{"message":{"role":"assistant","content":""},"done":true}`+"\n")
	}))
}

func TestOllamaProvider_Chat(t *testing.T) {
	srv := streamServer(t, []string{"Water ", "weekly."})
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3")
	out, err := p.Chat(context.Background(), []llm.Message{{Role: "user", Content: "hi"}})

	require.NoError(t, err)
	assert.Equal(t, "Water weekly.", out)
}

func TestOllamaProvider_ChatStream(t *testing.T) {
	srv := streamServer(t, []string{"Water ", "your ", "fern ", "weekly."})
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3")

	t.Run("delivers every chunk in order", func(t *testing.T) {
		var got []string
		err := p.ChatStream(context.Background(), []llm.Message{{Role: "user", Content: "hi"}}, func(chunk string) error {
			got = append(got, chunk)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"Water ", "your ", "fern ", "weekly."}, got)
	})

	t.Run("handler error stops the stream", func(t *testing.T) {
		stop := errors.New("client gone")
		var got []string
		err := p.ChatStream(context.Background(), []llm.Message{{Role: "user", Content: "hi"}}, func(chunk string) error {
			got = append(got, chunk)
			if len(got) == 2 {
				return stop
			}
			return nil
		})
		assert.ErrorIs(t, err, stop)
		assert.Len(t, got, 2)
	})
}

func TestOllamaProvider_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "missing")
	_, err := p.Chat(context.Background(), []llm.Message{{Role: "user", Content: "hi"}})
	assert.Error(t, err)

	err = p.ChatStream(context.Background(), []llm.Message{{Role: "user", Content: "hi"}}, func(string) error { return nil })
	assert.Error(t, err)
}
