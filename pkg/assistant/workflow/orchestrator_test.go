package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"plant-assistant-be/internal/constant"
	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/pkg/logger"
	repomemory "plant-assistant-be/internal/repository/memory"
	"plant-assistant-be/pkg/assistant/analyzer"
	"plant-assistant-be/pkg/assistant/generator"
	"plant-assistant-be/pkg/assistant/memory"
	"plant-assistant-be/pkg/assistant/retrieval"
	"plant-assistant-be/pkg/assistant/state"
	"plant-assistant-be/pkg/assistant/tool"
	"plant-assistant-be/pkg/embedding"
	"plant-assistant-be/pkg/llm"
	"plant-assistant-be/pkg/llm/llmtest"
	"plant-assistant-be/pkg/vectorstore"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu       sync.Mutex
	messages map[uuid.UUID][]*entity.ChatMessage
	ids      map[uuid.UUID]bool
	profiles map[uuid.UUID]*entity.UserProfile
	appends  int
}

func newMemStore() *memStore {
	return &memStore{
		messages: map[uuid.UUID][]*entity.ChatMessage{},
		ids:      map[uuid.UUID]bool{},
		profiles: map[uuid.UUID]*entity.UserProfile{},
	}
}

func (m *memStore) AppendTurn(ctx context.Context, turn *memory.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ids[turn.Messages[0].Id] {
		return memory.ErrDuplicateTurn
	}
	m.appends++
	next := len(m.messages[turn.SessionID]) + 1
	for i, msg := range turn.Messages {
		msg.SequenceNumber = next + i
		cp := *msg
		m.messages[turn.SessionID] = append(m.messages[turn.SessionID], &cp)
		m.ids[msg.Id] = true
	}
	return nil
}

func (m *memStore) FetchWindow(ctx context.Context, sessionID uuid.UUID, n int) ([]*entity.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[sessionID]
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return append([]*entity.ChatMessage(nil), msgs...), nil
}

func (m *memStore) GetProfile(ctx context.Context, userID uuid.UUID) (*entity.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profiles[userID], nil
}

func (m *memStore) UpsertProfile(ctx context.Context, delta entity.ProfileDelta) (*entity.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[delta.UserId]
	if !ok {
		p = &entity.UserProfile{UserId: delta.UserId}
		m.profiles[delta.UserId] = p
	}
	p.Merge(delta)
	return p, nil
}

func (m *memStore) MarkReconcile(ctx context.Context, sessionID uuid.UUID) error {
	return nil
}

func (m *memStore) session(id uuid.UUID) []*entity.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entity.ChatMessage(nil), m.messages[id]...)
}

type constEmbedder struct{}

func (constEmbedder) Generate(ctx context.Context, text string, taskType string) (*embedding.EmbeddingResponse, error) {
	return &embedding.EmbeddingResponse{Embedding: embedding.EmbeddingResponseEmbedding{Values: []float32{0.6, 0.8, 0}}}, nil
}

type lookupTool struct {
	name string
	fn   func(ctx context.Context) (any, error)
}

func (l lookupTool) Definition() tool.Definition {
	return tool.Definition{Name: l.name, Description: "test lookup"}
}

func (l lookupTool) Invoke(ctx context.Context, params map[string]any) (any, error) {
	return l.fn(ctx)
}

type harness struct {
	store *memStore
	llm   *llmtest.Fake
	orch  *Orchestrator
}

type harnessOpts struct {
	cfg         Config
	toolTimeout time.Duration
	tools       []tool.Tool
}

func isAnalysisPrompt(history []llm.Message) bool {
	return len(history) == 1 && strings.Contains(history[0].Content, "<output_format>")
}

func newHarness(t *testing.T, fake *llmtest.Fake, opts harnessOpts) *harness {
	t.Helper()
	log := logger.NewNopLogger()

	registry := tool.NewRegistry()
	for _, tl := range tool.Builtins(fake, nil) {
		require.NoError(t, registry.Register(tl))
	}
	for _, tl := range opts.tools {
		require.NoError(t, registry.Register(tl))
	}

	vectors, err := vectorstore.NewChromemStore("")
	require.NoError(t, err)

	store := newMemStore()
	cache := repomemory.NewProfileCache(time.Minute)
	if opts.toolTimeout == 0 {
		opts.toolTimeout = time.Second
	}

	orch := New(
		analyzer.New(fake, registry, log),
		tool.NewDispatcher(registry, opts.toolTimeout, 4, log),
		retrieval.New(store, store, cache, constEmbedder{}, vectors, 10, 5, log),
		generator.New(fake, log, generator.WithRetryInterval(time.Millisecond)),
		memory.NewUpdater(memory.Deps{
			Store:     store,
			Embedder:  constEmbedder{},
			Vectors:   vectors,
			Snapshots: cache,
			Logger:    log,
		}),
		opts.cfg,
		log,
	)
	return &harness{store: store, llm: fake, orch: orch}
}

func request(msg string) state.Request {
	return state.Request{UserID: uuid.New(), SessionID: uuid.New(), Message: msg}
}

func TestRunSymptomWithoutSpecies(t *testing.T) {
	fake := &llmtest.Fake{ReplyFunc: func(history []llm.Message) (string, error) {
		if isAnalysisPrompt(history) {
			// the classifier hallucinates a species the user never named
			return `{"intent":"plant_health","confidence":0.85,"species":["Monstera"],"symptoms":["yellowing leaves"],"tools":[]}`, nil
		}
		return "Lá vàng thường do tưới quá nhiều nước hoặc thiếu ánh sáng. Đây là cây gì vậy?", nil
	}}
	h := newHarness(t, fake, harnessOpts{})

	req := request("Cây bị vàng lá")
	st := h.orch.Run(context.Background(), req)

	assert.Equal(t, state.IntentPlantHealth, st.Intent())
	assert.Empty(t, st.Species())
	assert.Empty(t, st.ToolsUsed())
	assert.NotEmpty(t, st.Reply.Message)
	assert.NotEmpty(t, st.Reply.Suggestions)
	assert.Contains(t, st.Reply.Suggestions, generator.PhotoFollowUp)
	assert.False(t, st.Reply.Partial)
	assert.Empty(t, st.Failures)

	generation := fake.History[len(fake.History)-1]
	assert.Contains(t, generation[0].Content, "<known_plants>\nnone\n")
	assert.NotContains(t, generation[0].Content, "Monstera")

	stored := h.store.session(req.SessionID)
	require.Len(t, stored, 2)
	assert.Equal(t, constant.ChatMessageRoleUser, stored[0].Role)
	assert.Equal(t, constant.ChatMessageRoleAssistant, stored[1].Role)
	assert.Empty(t, stored[1].Species)
	require.NotNil(t, st.Persisted)
	assert.True(t, st.Persisted.Embedded)
}

func TestRunCarriesHistoryIntoNextTurn(t *testing.T) {
	fake := &llmtest.Fake{ReplyFunc: func(history []llm.Message) (string, error) {
		if isAnalysisPrompt(history) {
			return `{"intent":"plant_care","confidence":0.9,"species":["pothos"],"tools":[]}`, nil
		}
		return "Water when the top inch of soil is dry.", nil
	}}
	h := newHarness(t, fake, harnessOpts{})

	req := request("How often should I water my pothos?")
	h.orch.Run(context.Background(), req)

	req.Message = "And in winter?"
	st := h.orch.Run(context.Background(), req)

	// system, two window messages, current user message
	generation := fake.History[len(fake.History)-1]
	require.Len(t, generation, 4)
	assert.Equal(t, "How often should I water my pothos?", generation[1].Content)
	assert.Contains(t, generation[0].Content, "pothos")
	assert.Len(t, h.store.session(req.SessionID), 4)
	assert.Equal(t, []string{"pothos"}, st.Species())
}

func TestRunAnalyzerFailureFallsBack(t *testing.T) {
	fake := &llmtest.Fake{ReplyFunc: func(history []llm.Message) (string, error) {
		if isAnalysisPrompt(history) {
			return "", errors.New("classifier offline")
		}
		return "Happy to help with your plants.", nil
	}}
	h := newHarness(t, fake, harnessOpts{})

	st := h.orch.Run(context.Background(), request("hello there"))

	assert.True(t, st.Failed(state.ErrAnalysis))
	assert.Equal(t, state.IntentGeneralQuestion, st.Intent())
	assert.Equal(t, analyzer.FallbackConfidence, st.Analysis.Confidence)
	assert.Equal(t, "Happy to help with your plants.", st.Reply.Message)
	assert.False(t, st.Reply.Degraded)
}

func TestRunToolTimeoutDoesNotBlockTurn(t *testing.T) {
	fast := lookupTool{name: "fast_lookup", fn: func(ctx context.Context) (any, error) {
		return "fast result", nil
	}}
	slow := lookupTool{name: "slow_lookup", fn: func(ctx context.Context) (any, error) {
		time.Sleep(2 * time.Second)
		return "slow result", nil
	}}
	fake := &llmtest.Fake{ReplyFunc: func(history []llm.Message) (string, error) {
		if isAnalysisPrompt(history) {
			return `{"intent":"plant_care","confidence":0.8,"tools":[{"name":"fast_lookup","params":{}},{"name":"slow_lookup","params":{}}]}`, nil
		}
		return "Here is what I found.", nil
	}}
	h := newHarness(t, fake, harnessOpts{
		cfg:         Config{Deadline: 3 * time.Second},
		toolTimeout: 100 * time.Millisecond,
		tools:       []tool.Tool{fast, slow},
	})

	start := time.Now()
	st := h.orch.Run(context.Background(), request("look both up"))

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []string{"fast_lookup"}, st.ToolsUsed())
	assert.True(t, st.Failed(state.ErrTool))
	assert.False(t, st.Failed(state.ErrGuard))
	assert.Equal(t, "Here is what I found.", st.Reply.Message)

	require.Len(t, st.Invocations, 2)
	assert.True(t, st.Invocations[1].TimedOut)

	generation := fake.History[len(fake.History)-1]
	userPrompt := generation[len(generation)-1].Content
	assert.Contains(t, userPrompt, "fast result")
	assert.NotContains(t, userPrompt, "slow_lookup")
}

func TestRunDeadlineDegrades(t *testing.T) {
	stuck := lookupTool{name: "stuck_lookup", fn: func(ctx context.Context) (any, error) {
		time.Sleep(2 * time.Second)
		return nil, nil
	}}
	fake := &llmtest.Fake{ReplyFunc: func(history []llm.Message) (string, error) {
		if isAnalysisPrompt(history) {
			return `{"intent":"plant_care","confidence":0.8,"tools":[{"name":"stuck_lookup","params":{}}]}`, nil
		}
		return "never reached", nil
	}}
	h := newHarness(t, fake, harnessOpts{
		cfg:         Config{Deadline: 150 * time.Millisecond},
		toolTimeout: 5 * time.Second,
		tools:       []tool.Tool{stuck},
	})

	req := request("check it")
	start := time.Now()
	st := h.orch.Run(context.Background(), req)

	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, st.Failed(state.ErrGuard))
	assert.Equal(t, generator.ApologyMessage, st.Reply.Message)
	assert.True(t, st.Reply.Partial)
	assert.True(t, st.Reply.Degraded)
	assert.NotEmpty(t, st.Reply.Suggestions)
	assert.Empty(t, st.ToolsUsed())

	// memory is still updated after a guard trip
	assert.Len(t, h.store.session(req.SessionID), 2)
}

func TestRunVisitGuard(t *testing.T) {
	noop := lookupTool{name: "noop_lookup", fn: func(ctx context.Context) (any, error) {
		return "ok", nil
	}}
	fake := &llmtest.Fake{ReplyFunc: func(history []llm.Message) (string, error) {
		if isAnalysisPrompt(history) {
			return `{"intent":"plant_care","confidence":0.8,"tools":[{"name":"noop_lookup","params":{}}]}`, nil
		}
		return "never reached", nil
	}}
	h := newHarness(t, fake, harnessOpts{
		cfg:   Config{MaxNodeVisits: 2},
		tools: []tool.Tool{noop},
	})

	req := request("anything")
	st := h.orch.Run(context.Background(), req)

	assert.True(t, st.Failed(state.ErrGuard))
	assert.Equal(t, generator.ApologyMessage, st.Reply.Message)
	assert.True(t, st.Reply.Partial)
	assert.Equal(t, []string{"noop_lookup"}, st.ToolsUsed())
	assert.Equal(t, 1, fake.CallCount())
	assert.Len(t, h.store.session(req.SessionID), 2)
}

func TestRunStreamCancelledMidReply(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := &llmtest.Fake{
		ReplyFunc: func(history []llm.Message) (string, error) {
			return `{"intent":"plant_health","confidence":0.7,"tools":[]}`, nil
		},
		Chunks: []string{"Lá ", "vàng ", "có ", "thể ", "do ", "úng ", "nước."},
		OnChunk: func(i int) {
			if i == 1 {
				cancel()
			}
		},
	}
	h := newHarness(t, fake, harnessOpts{})

	var (
		mu      sync.Mutex
		emitted []string
	)
	req := request("Cây bị vàng lá")
	st := h.orch.RunStream(ctx, req, func(chunk string) error {
		mu.Lock()
		defer mu.Unlock()
		emitted = append(emitted, chunk)
		return nil
	})

	assert.Equal(t, []string{"Lá ", "vàng "}, emitted)
	assert.True(t, st.Cancelled)
	assert.True(t, st.Reply.Partial)
	assert.Equal(t, "Lá vàng ", st.Reply.Message)

	stored := h.store.session(req.SessionID)
	require.Len(t, stored, 2)
	assert.Equal(t, 1, h.store.appends)
	assert.True(t, stored[1].Partial)
	assert.Contains(t, stored[1].Chat, "Lá vàng")
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &llmtest.Fake{Reply: "unused"}
	h := newHarness(t, fake, harnessOpts{})

	req := request("hello")
	st := h.orch.Run(ctx, req)

	assert.True(t, st.Cancelled)
	assert.True(t, st.Reply.Partial)
	assert.Equal(t, 0, fake.CallCount())

	stored := h.store.session(req.SessionID)
	require.Len(t, stored, 1)
	assert.Equal(t, constant.ChatMessageRoleUser, stored[0].Role)
}
