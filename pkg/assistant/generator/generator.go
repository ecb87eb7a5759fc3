// Package generator turns an analyzed, context-enriched turn into the assistant reply.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"plant-assistant-be/internal/pkg/logger"
	"plant-assistant-be/pkg/assistant/state"
	"plant-assistant-be/pkg/llm"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultRetryInterval = 500 * time.Millisecond
	maxAttempts          = 2 // first call plus one retry
	temperature          = 0.7
)

var (
	ErrEmptyCompletion = errors.New("empty completion")
	errEmitStopped     = errors.New("emit stopped")
)

// EmitFunc delivers a chunk to the caller. Returning an error stops the stream.
type EmitFunc func(chunk string) error

type Generator struct {
	llm           llm.LLMProvider
	retryInterval time.Duration
	logger        logger.ILogger
}

type Option func(*Generator)

func WithRetryInterval(d time.Duration) Option {
	return func(g *Generator) {
		g.retryInterval = d
	}
}

func New(provider llm.LLMProvider, logger logger.ILogger, opts ...Option) *Generator {
	g := &Generator{
		llm:           provider,
		retryInterval: DefaultRetryInterval,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) retryOptions() []backoff.RetryOption {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.retryInterval
	return []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(maxAttempts),
	}
}

// Generate runs a single completion, retrying once. Exhausted retries yield the apology.
func (g *Generator) Generate(ctx context.Context, st *state.State) state.Reply {
	messages := BuildPrompt(st)
	attempt := 0

	text, err := backoff.Retry(ctx, func() (string, error) {
		attempt++
		out, err := g.llm.Chat(ctx, messages, llm.WithTemperature(temperature))
		if err != nil {
			if ctx.Err() != nil {
				return "", backoff.Permanent(ctx.Err())
			}
			g.logger.Warn("GENERATOR", "Completion failed", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
			})
			return "", err
		}
		if strings.TrimSpace(out) == "" {
			return "", ErrEmptyCompletion
		}
		return out, nil
	}, g.retryOptions()...)

	if err != nil {
		st.Fail(state.KindGeneration, state.NodeGenerateResponse, fmt.Errorf("after %d attempts: %w", attempt, err))
		if ctx.Err() != nil {
			st.Cancelled = true
		}
		return g.degraded(st)
	}

	return g.finish(st, strings.TrimSpace(text), false)
}

// Stream emits chunks as the provider produces them. Cancellation or an emit
// error stops emission at the next chunk and yields a partial reply with the
// text emitted so far. Only a stream that emitted nothing is retried.
func (g *Generator) Stream(ctx context.Context, st *state.State, emit EmitFunc) state.Reply {
	messages := BuildPrompt(st)

	var (
		sb      strings.Builder
		emitted int
		lastErr error
	)

	handler := func(chunk string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if chunk == "" {
			return nil
		}
		if err := emit(chunk); err != nil {
			return fmt.Errorf("%w: %v", errEmitStopped, err)
		}
		sb.WriteString(chunk)
		emitted++
		return nil
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = g.llm.ChatStream(ctx, messages, handler, llm.WithTemperature(temperature))
		if lastErr == nil && strings.TrimSpace(sb.String()) == "" {
			lastErr = ErrEmptyCompletion
		}
		if lastErr == nil || emitted > 0 || stopped(ctx, lastErr) {
			break
		}
		g.logger.Warn("GENERATOR", "Stream failed before first chunk", map[string]interface{}{
			"attempt": attempt,
			"error":   lastErr.Error(),
		})
		if attempt < maxAttempts && !sleepCtx(ctx, g.retryInterval) {
			lastErr = ctx.Err()
			break
		}
	}

	switch {
	case lastErr == nil:
		return g.finish(st, sb.String(), false)

	case stopped(ctx, lastErr):
		st.Cancelled = true
		g.logger.Info("GENERATOR", "Stream cancelled", map[string]interface{}{
			"chunks": emitted,
		})
		return g.finish(st, sb.String(), true)

	case emitted > 0:
		// provider broke mid-stream; keep what the user already saw
		st.Fail(state.KindGeneration, state.NodeGenerateResponse, lastErr)
		reply := g.finish(st, sb.String(), true)
		reply.Degraded = true
		return reply

	default:
		st.Fail(state.KindGeneration, state.NodeGenerateResponse, lastErr)
		reply := g.degraded(st)
		_ = emit(reply.Message)
		return reply
	}
}

func (g *Generator) finish(st *state.State, text string, partial bool) state.Reply {
	return state.Reply{
		Message:        text,
		Suggestions:    Suggestions(st),
		RelatedActions: RelatedActions(st),
		Partial:        partial,
	}
}

func (g *Generator) degraded(st *state.State) state.Reply {
	reply := Apology()
	reply.Partial = st.Cancelled
	return reply
}

func stopped(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, errEmitStopped)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
