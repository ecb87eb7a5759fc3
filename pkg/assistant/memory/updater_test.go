package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"plant-assistant-be/internal/pkg/logger"
	repomemory "plant-assistant-be/internal/repository/memory"
	"plant-assistant-be/pkg/assistant/state"
	"plant-assistant-be/pkg/assistant/tool"
	"plant-assistant-be/pkg/events"
	"plant-assistant-be/pkg/vectorstore"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	store     *fakeStore
	vectors   *vectorstore.ChromemStore
	ordered   *orderedVectors
	embedder  *fakeEmbedder
	publisher *recordingPublisher
	queue     *recordingQueue
	cache     *repomemory.ProfileCache
	updater   *Updater
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	vectors, err := vectorstore.NewChromemStore("")
	require.NoError(t, err)

	h := &harness{
		store:     newFakeStore(),
		vectors:   vectors,
		embedder:  &fakeEmbedder{},
		publisher: &recordingPublisher{},
		queue:     &recordingQueue{},
		cache:     repomemory.NewProfileCache(time.Minute),
	}
	h.ordered = &orderedVectors{Store: vectors, store: h.store}
	h.updater = NewUpdater(Deps{
		Store:     h.store,
		Guard:     NewLocalGuard(),
		Embedder:  h.embedder,
		Vectors:   h.ordered,
		Snapshots: h.cache,
		Publisher: h.publisher,
		Reembed:   h.queue,
		Logger:    logger.NewNopLogger(),
	})
	return h
}

func finishedState(userID, sessionID uuid.UUID, message, reply string) *state.State {
	st := state.New(state.Request{UserID: userID, SessionID: sessionID, Message: message})
	st.Analysis = &state.Analysis{Intent: state.IntentPlantCare}
	st.Reply = state.Reply{Message: reply}
	return st
}

func TestPersistGaplessUnderConcurrency(t *testing.T) {
	h := newHarness(t)
	userID, sessionID := uuid.New(), uuid.New()

	const turns = 20
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st := finishedState(userID, sessionID, fmt.Sprintf("question %d", i), fmt.Sprintf("answer %d", i))
			assert.NoError(t, h.updater.Persist(context.Background(), st))
		}(i)
	}
	wg.Wait()

	msgs, err := h.store.FetchWindow(context.Background(), sessionID, 1000)
	require.NoError(t, err)
	require.Len(t, msgs, turns*2)
	for i, m := range msgs {
		assert.Equal(t, i+1, m.SequenceNumber)
	}
	// each turn's two messages are adjacent
	for i := 0; i < len(msgs); i += 2 {
		assert.Equal(t, "user", msgs[i].Role)
		assert.Equal(t, "assistant", msgs[i+1].Role)
	}
	assert.False(t, h.ordered.violation, "vector upsert must follow the relational write")
}

func TestPersistRoundTrip(t *testing.T) {
	h := newHarness(t)
	userID, sessionID := uuid.New(), uuid.New()

	st := finishedState(userID, sessionID, "Cây bị vàng lá", "Lá vàng thường do tưới quá nhiều.")
	require.NoError(t, h.updater.Persist(context.Background(), st))

	window, err := h.store.FetchWindow(context.Background(), sessionID, 10)
	require.NoError(t, err)
	require.Len(t, window, 2)

	assert.Equal(t, "Cây bị vàng lá", window[0].Chat)
	assert.Equal(t, "user", window[0].Role)
	assert.Equal(t, 1, window[0].SequenceNumber)
	assert.Equal(t, "Lá vàng thường do tưới quá nhiều.", window[1].Chat)
	assert.Equal(t, "assistant", window[1].Role)
	assert.Equal(t, 2, window[1].SequenceNumber)

	require.NotNil(t, st.Persisted)
	assert.True(t, st.Persisted.Embedded)
	assert.Equal(t, window[1].Id, st.Persisted.AssistantMessageID)
	require.NotNil(t, window[0].EmbeddingId)
	assert.Equal(t, window[1].Id, *window[0].EmbeddingId)

	assert.Equal(t, 1, h.vectors.Count(userID.String()))
	assert.Equal(t, []string{events.TypeTurnCompleted}, h.publisher.types())

	cached, ok := h.cache.Get(userID)
	require.True(t, ok)
	assert.Equal(t, 1, cached.TopicCounts[state.IntentPlantCare])
}

func TestPersistAppendFailures(t *testing.T) {
	t.Run("transient failure is retried", func(t *testing.T) {
		h := newHarness(t)
		h.store.appendErrs = []error{errors.New("deadlock detected")}
		st := finishedState(uuid.New(), uuid.New(), "hi", "hello")

		require.NoError(t, h.updater.Persist(context.Background(), st))
		assert.Empty(t, st.Failures)
		assert.False(t, h.store.reconcile[st.Request.SessionID])
	})

	t.Run("persistent failure flags the session and publishes", func(t *testing.T) {
		h := newHarness(t)
		h.store.appendErrs = []error{errors.New("db down"), errors.New("db down")}
		st := finishedState(uuid.New(), uuid.New(), "hi", "hello")

		err := h.updater.Persist(context.Background(), st)
		require.Error(t, err)

		assert.True(t, st.Failed(state.ErrPersistence))
		assert.Nil(t, st.Persisted)
		assert.True(t, h.store.reconcile[st.Request.SessionID])
		assert.Equal(t, []string{events.TypeReconcileRequired}, h.publisher.types())
		assert.Equal(t, "hello", st.Reply.Message, "the reply is untouched")

		turn, err := TurnFromPayload(h.publisher.events[0].Payload())
		require.NoError(t, err)
		assert.Len(t, turn.Messages, 2)

		require.NoError(t, h.updater.Replay(context.Background(), turn))
		require.NoError(t, h.updater.Replay(context.Background(), turn))
		msgs, _ := h.store.FetchWindow(context.Background(), st.Request.SessionID, 10)
		assert.Len(t, msgs, 2, "replay is idempotent")
		assert.Equal(t, 1, h.vectors.Count(st.Request.UserID.String()))
	})
}

func TestPersistEmbeddingFailureQueuesReembed(t *testing.T) {
	h := newHarness(t)
	h.embedder.fails = 1
	st := finishedState(uuid.New(), uuid.New(), "hi", "hello")

	require.NoError(t, h.updater.Persist(context.Background(), st))

	require.NotNil(t, st.Persisted)
	assert.False(t, st.Persisted.Embedded)
	assert.True(t, st.Failed(state.ErrPersistence))
	assert.True(t, h.store.reconcile[st.Request.SessionID])
	require.Len(t, h.queue.jobs, 1)

	job := h.queue.jobs[0]
	assert.Equal(t, st.Persisted.AssistantMessageID, job.MessageID)
	assert.Equal(t, "user: hi\nassistant: hello", job.Content)

	require.NoError(t, h.updater.Reembed(context.Background(), job))
	require.NoError(t, h.updater.Reembed(context.Background(), job))
	assert.Equal(t, 1, h.vectors.Count(st.Request.UserID.String()))
}

func TestPersistCancelledBeforeFirstChunk(t *testing.T) {
	h := newHarness(t)
	st := finishedState(uuid.New(), uuid.New(), "hi", "")
	st.Reply.Partial = true

	require.NoError(t, h.updater.Persist(context.Background(), st))

	msgs, _ := h.store.FetchWindow(context.Background(), st.Request.SessionID, 10)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, 0, h.vectors.Count(st.Request.UserID.String()))
}

func TestPartialReplyIsStoredOnce(t *testing.T) {
	h := newHarness(t)
	st := finishedState(uuid.New(), uuid.New(), "tell me everything", "Monstera likes")
	st.Reply.Partial = true

	require.NoError(t, h.updater.Persist(context.Background(), st))

	msgs, _ := h.store.FetchWindow(context.Background(), st.Request.SessionID, 10)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].Partial)
	assert.Equal(t, "Monstera likes", msgs[1].Chat)
}

func TestProfileDelta(t *testing.T) {
	st := finishedState(uuid.New(), uuid.New(), "my pothos has spots", "")
	st.Request.ImageURL = "https://cdn.example.com/uploads/pothos.jpg"
	st.Analysis.Intent = state.IntentPlantHealth
	st.Analysis.Entities.Species = []string{"Pothos"}
	st.Invocations = []tool.Invocation{
		{Name: tool.SavePreference, Result: tool.Preference{ExperienceLevel: "beginner", Plant: "Fern"}},
		{Name: tool.DiagnosePlantHealth, Result: tool.Diagnosis{
			PlantIdentification:      tool.PlantIdentification{Species: "Epipremnum aureum"},
			HealthAssessment:         tool.HealthAssessment{Condition: "Leaf spot"},
			TreatmentRecommendations: []string{"Remove affected leaves", "Reduce misting"},
		}},
		{Name: tool.SavePreference, Err: tool.ErrTimeout, TimedOut: true, Result: tool.Preference{ExperienceLevel: "expert"}},
	}

	delta := ProfileDelta(st)

	assert.Equal(t, "beginner", delta.ExperienceLevel)
	assert.Equal(t, []string{"Fern", "Epipremnum aureum"}, delta.Plants)
	assert.Equal(t, 1, delta.Topics[state.IntentPlantHealth])
	assert.Equal(t, 1, delta.Topics["species:pothos"])
	require.Len(t, delta.Treatments, 1)
	assert.Equal(t, "Remove affected leaves; Reduce misting", delta.Treatments[0].Treatment)
}

func TestProfileDeltaDiagnosisWithoutPhoto(t *testing.T) {
	st := finishedState(uuid.New(), uuid.New(), "what does root rot look like on a snake plant?", "")
	st.Analysis.Intent = state.IntentPlantHealth
	st.Invocations = []tool.Invocation{
		{Name: tool.DiagnosePlantHealth, Result: tool.Diagnosis{
			PlantIdentification:      tool.PlantIdentification{Species: "Dracaena trifasciata"},
			HealthAssessment:         tool.HealthAssessment{Condition: "Root rot"},
			TreatmentRecommendations: []string{"Repot in dry soil"},
		}},
	}

	delta := ProfileDelta(st)

	assert.Empty(t, delta.Plants)
	require.Len(t, delta.Treatments, 1)
	assert.Equal(t, "Dracaena trifasciata", delta.Treatments[0].Species)
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "Cây bị vàng lá", expected: "Cây bị vàng lá"},
		{input: "  why   are my   leaves yellow  ", expected: "why are my leaves yellow"},
		{input: "one two three four five six seven eight", expected: "one two three four five six"},
		{input: "Photosynthesis-related-questions-about-variegated-monstera-cuttings please", expected: "Photosynthesis-related-questions-about-variegat..."},
		{input: "   ", expected: ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := DeriveTitle(tt.input)
			assert.Equal(t, tt.expected, got)
			assert.LessOrEqual(t, len([]rune(got)), 50)
		})
	}
}

func TestMergeTags(t *testing.T) {
	assert.Equal(t,
		[]string{"plant_care", "Monstera", "plant_health"},
		MergeTags([]string{"plant_care", "Monstera"}, []string{"monstera", "plant_health", " "}),
	)
}
