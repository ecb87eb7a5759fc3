package huggingface

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

// routerServer answers like the HF router and hands each decoded request body to seen.
func routerServer(t *testing.T, chunks []string, seen func(map[string]any)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer hf_test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if seen != nil {
			seen(body)
		}

		if stream, _ := body["stream"].(bool); !stream {
			fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q}}]}`, strings.Join(chunks, ""))
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, ": keep-alive\n\n")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", c)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestHuggingFaceProvider_Chat(t *testing.T) {
	var body map[string]any
	srv := routerServer(t, []string{`{"intent":`, `"plant_care"}`}, func(b map[string]any) { body = b })
	defer srv.Close()

	p := NewHuggingFaceProvider("hf_test", srv.URL, "Qwen/Qwen2.5-7B-Instruct")
	out, err := p.Chat(context.Background(),
		[]llm.Message{{Role: "user", Content: "classify"}},
		llm.WithTemperature(0), llm.WithJSON(),
	)

	require.NoError(t, err)
	assert.Equal(t, `{"intent":"plant_care"}`, out)

	t.Run("zero temperature is sent", func(t *testing.T) {
		temp, ok := body["temperature"]
		require.True(t, ok)
		assert.Equal(t, float64(0), temp)
	})

	t.Run("json mode sets response_format", func(t *testing.T) {
		assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
	})
}

func TestHuggingFaceProvider_ChatOmitsUnsetTemperature(t *testing.T) {
	var body map[string]any
	srv := routerServer(t, []string{"ok"}, func(b map[string]any) { body = b })
	defer srv.Close()

	p := NewHuggingFaceProvider("hf_test", srv.URL, "model")
	_, err := p.Generate(context.Background(), "hi")

	require.NoError(t, err)
	assert.NotContains(t, body, "temperature")
	assert.NotContains(t, body, "response_format")
	assert.Equal(t, "model", body["model"])
}

func TestHuggingFaceProvider_Images(t *testing.T) {
	var body map[string]any
	srv := routerServer(t, []string{"Looks like a pothos."}, func(b map[string]any) { body = b })
	defer srv.Close()

	p := NewHuggingFaceProvider("hf_test", srv.URL, "vision-model")
	_, err := p.Chat(context.Background(), []llm.Message{
		{Role: "system", Content: "You are a botanist."},
		{Role: "user", Content: "What plant is this?", Images: []string{"aGVsbG8=", "https://cdn.example.com/leaf.png"}},
	})
	require.NoError(t, err)

	messages := body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "You are a botanist.", messages[0].(map[string]any)["content"])

	parts := messages[1].(map[string]any)["content"].([]any)
	require.Len(t, parts, 3)
	assert.Equal(t, "What plant is this?", parts[0].(map[string]any)["text"])
	assert.Equal(t, "data:image/jpeg;base64,aGVsbG8=", parts[1].(map[string]any)["image_url"].(map[string]any)["url"])
	assert.Equal(t, "https://cdn.example.com/leaf.png", parts[2].(map[string]any)["image_url"].(map[string]any)["url"])
}

func TestHuggingFaceProvider_ChatStream(t *testing.T) {
	srv := routerServer(t, []string{"Water ", "your ", "fern ", "weekly."}, nil)
	defer srv.Close()

	p := NewHuggingFaceProvider("hf_test", srv.URL, "model")

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

func TestHuggingFaceProvider_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model is loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewHuggingFaceProvider("hf_test", srv.URL, "model")
	_, err := p.Chat(context.Background(), []llm.Message{{Role: "user", Content: "hi"}})
	assert.ErrorContains(t, err, "503")

	err = p.ChatStream(context.Background(), []llm.Message{{Role: "user", Content: "hi"}}, func(string) error { return nil })
	assert.Error(t, err)
}
