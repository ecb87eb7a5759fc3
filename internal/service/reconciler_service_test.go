package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"plant-assistant-be/internal/constant"
	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/pkg/logger"
	"plant-assistant-be/pkg/assistant/memory"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepairer struct {
	mu          sync.Mutex
	reembedErrs int
	failing     map[uuid.UUID]bool
	replayErr   error
	reembeds    []memory.ReembedJob
	replays     []*memory.Turn
}

func (f *fakeRepairer) Replay(ctx context.Context, turn *memory.Turn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replays = append(f.replays, turn)
	return f.replayErr
}

func (f *fakeRepairer) Reembed(ctx context.Context, job memory.ReembedJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reembeds = append(f.reembeds, job)
	if f.failing[job.MessageID] {
		return errors.New("embedder rejected content")
	}
	if f.reembedErrs > 0 {
		f.reembedErrs--
		return errors.New("vector store down")
	}
	return nil
}

func (f *fakeRepairer) reembedAttempts() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.reembeds))
	for i, j := range f.reembeds {
		out[i] = j.Attempt
	}
	return out
}

// fakeFlags mirrors the counting semantics of the session's reconcile columns.
type fakeFlags struct {
	mu       sync.Mutex
	pending  map[uuid.UUID]int
	resolved []uuid.UUID
}

func (f *fakeFlags) ResolveReconcile(ctx context.Context, sessionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, sessionID)
	if f.pending[sessionID] > 0 {
		f.pending[sessionID]--
	}
	return nil
}

func (f *fakeFlags) resolvedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.resolved)
}

func (f *fakeFlags) flagged(sessionID uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending[sessionID] > 0
}

func newTestReconciler(t *testing.T, repairer *fakeRepairer, flags *fakeFlags) (*reconcilerService, *ReembedQueue) {
	t.Helper()
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	queue := NewReembedQueue(pubSub, "REEMBED_TEST")
	rs := NewReconcilerService(pubSub, "REEMBED_TEST", queue, repairer, flags, nil, logger.NewNopLogger()).(*reconcilerService)
	rs.delay = func(int) time.Duration { return 5 * time.Millisecond }
	return rs, queue
}

func TestReconcilerReembedRetriesThenClears(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repairer := &fakeRepairer{reembedErrs: 2}
	flags := &fakeFlags{}
	rs, queue := newTestReconciler(t, repairer, flags)
	require.NoError(t, rs.Start(ctx))

	sessionID := uuid.New()
	require.NoError(t, queue.Enqueue(ctx, memory.ReembedJob{
		MessageID: uuid.New(),
		SessionID: sessionID,
		UserID:    uuid.New(),
		Content:   "User: hi\nAssistant: hello",
	}))

	assert.Eventually(t, func() bool { return flags.resolvedCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []int{1, 2, 3}, repairer.reembedAttempts())
}

func TestReconcilerReembedGivesUp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repairer := &fakeRepairer{reembedErrs: 100}
	flags := &fakeFlags{}
	rs, queue := newTestReconciler(t, repairer, flags)
	require.NoError(t, rs.Start(ctx))

	require.NoError(t, queue.Enqueue(ctx, memory.ReembedJob{MessageID: uuid.New(), SessionID: uuid.New()}))

	assert.Eventually(t, func() bool { return len(repairer.reembedAttempts()) == maxReembedAttempts }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, repairer.reembedAttempts(), maxReembedAttempts)
	assert.Equal(t, 0, flags.resolvedCount())
}

func TestReconcilerKeepsFlagWhileAnotherJobIsExhausted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessionID := uuid.New()
	stuck, healthy := uuid.New(), uuid.New()
	repairer := &fakeRepairer{failing: map[uuid.UUID]bool{stuck: true}}
	flags := &fakeFlags{pending: map[uuid.UUID]int{sessionID: 2}}
	rs, queue := newTestReconciler(t, repairer, flags)
	require.NoError(t, rs.Start(ctx))

	require.NoError(t, queue.Enqueue(ctx, memory.ReembedJob{MessageID: stuck, SessionID: sessionID}))
	require.NoError(t, queue.Enqueue(ctx, memory.ReembedJob{MessageID: healthy, SessionID: sessionID}))

	assert.Eventually(t, func() bool {
		return len(repairer.reembedAttempts()) == maxReembedAttempts+1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 1, flags.resolvedCount())
	assert.True(t, flags.flagged(sessionID), "session with an exhausted job must stay flagged")
}

func TestReconcilerHandleReconcile(t *testing.T) {
	sessionID := uuid.New()
	turn := &memory.Turn{
		SessionID: sessionID,
		UserID:    uuid.New(),
		Messages: []*entity.ChatMessage{{
			Id:            uuid.New(),
			ChatSessionId: sessionID,
			Role:          constant.ChatMessageRoleUser,
			Chat:          "Cây bị vàng lá",
		}},
		At: time.Now(),
	}

	t.Run("replays and resolves the flag", func(t *testing.T) {
		repairer := &fakeRepairer{}
		flags := &fakeFlags{}
		rs, _ := newTestReconciler(t, repairer, flags)

		event := memoryReconcileEvent(turn)
		require.NoError(t, rs.handleReconcile(context.Background(), event))

		require.Len(t, repairer.replays, 1)
		assert.Equal(t, "Cây bị vàng lá", repairer.replays[0].Messages[0].Chat)
		assert.Equal(t, 1, flags.resolvedCount())
	})

	t.Run("failed replay is redelivered", func(t *testing.T) {
		repairer := &fakeRepairer{replayErr: errors.New("db down")}
		flags := &fakeFlags{}
		rs, _ := newTestReconciler(t, repairer, flags)

		assert.Error(t, rs.handleReconcile(context.Background(), memoryReconcileEvent(turn)))
		assert.Equal(t, 0, flags.resolvedCount())
	})

	t.Run("payload without a turn is dropped", func(t *testing.T) {
		repairer := &fakeRepairer{}
		rs, _ := newTestReconciler(t, repairer, &fakeFlags{})

		event := memoryReconcileEvent(&memory.Turn{})
		assert.NoError(t, rs.handleReconcile(context.Background(), event))
		assert.Empty(t, repairer.replays)
	})
}
