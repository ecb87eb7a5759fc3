// Package llmtest provides a scriptable LLMProvider for tests.
package llmtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"plant-assistant-be/pkg/llm"
)

var ErrScripted = errors.New("llmtest: scripted failure")

// Fake answers Chat/Generate from Reply (or ReplyFunc) and streams Chunks.
// FailTimes makes the first N calls fail with ErrScripted.
type Fake struct {
	mu sync.Mutex

	Reply     string
	ReplyFunc func(history []llm.Message) (string, error)
	Chunks    []string
	// OnChunk runs after each chunk is handed to the stream handler.
	OnChunk   func(i int)
	FailTimes int

	Calls   int
	History [][]llm.Message
}

var _ llm.LLMProvider = (*Fake)(nil)

func (f *Fake) record(history []llm.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	f.History = append(f.History, history)
	if f.FailTimes > 0 {
		f.FailTimes--
		return false
	}
	return true
}

func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls
}

func (f *Fake) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !f.record(history) {
		return "", ErrScripted
	}
	if f.ReplyFunc != nil {
		return f.ReplyFunc(history)
	}
	return f.Reply, nil
}

func (f *Fake) ChatStream(ctx context.Context, history []llm.Message, handler llm.StreamHandler, options ...llm.Option) error {
	if !f.record(history) {
		return ErrScripted
	}
	chunks := f.Chunks
	if len(chunks) == 0 && f.Reply != "" {
		chunks = strings.SplitAfter(f.Reply, " ")
	}
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := handler(c); err != nil {
			return err
		}
		if f.OnChunk != nil {
			f.OnChunk(i)
		}
	}
	return nil
}

func (f *Fake) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return f.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, options...)
}
