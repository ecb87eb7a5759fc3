package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"plant-assistant-be/internal/entity"
	"plant-assistant-be/pkg/embedding"
	"plant-assistant-be/pkg/events"
	"plant-assistant-be/pkg/vectorstore"

	"github.com/google/uuid"
)

// fakeStore allocates sequence numbers with a read-sleep-write gap, so only
// the guard keeps concurrent appends on one session gapless.
type fakeStore struct {
	mu         sync.Mutex
	messages   map[uuid.UUID][]*entity.ChatMessage
	ids        map[uuid.UUID]bool
	profiles   map[uuid.UUID]*entity.UserProfile
	reconcile  map[uuid.UUID]bool
	appendErrs []error
	appendedAt map[uuid.UUID]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		messages:   map[uuid.UUID][]*entity.ChatMessage{},
		ids:        map[uuid.UUID]bool{},
		profiles:   map[uuid.UUID]*entity.UserProfile{},
		reconcile:  map[uuid.UUID]bool{},
		appendedAt: map[uuid.UUID]time.Time{},
	}
}

func (f *fakeStore) AppendTurn(ctx context.Context, turn *Turn) error {
	f.mu.Lock()
	if len(f.appendErrs) > 0 {
		err := f.appendErrs[0]
		f.appendErrs = f.appendErrs[1:]
		f.mu.Unlock()
		return err
	}
	if f.ids[turn.Messages[0].Id] {
		f.mu.Unlock()
		return ErrDuplicateTurn
	}
	next := len(f.messages[turn.SessionID]) + 1
	f.mu.Unlock()

	time.Sleep(time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range turn.Messages {
		m.SequenceNumber = next + i
		cp := *m
		f.messages[turn.SessionID] = append(f.messages[turn.SessionID], &cp)
		f.ids[m.Id] = true
		f.appendedAt[m.Id] = time.Now()
	}
	return nil
}

func (f *fakeStore) FetchWindow(ctx context.Context, sessionID uuid.UUID, n int) ([]*entity.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.messages[sessionID]
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return append([]*entity.ChatMessage(nil), msgs...), nil
}

func (f *fakeStore) GetProfile(ctx context.Context, userID uuid.UUID) (*entity.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profiles[userID], nil
}

func (f *fakeStore) UpsertProfile(ctx context.Context, delta entity.ProfileDelta) (*entity.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[delta.UserId]
	if !ok {
		p = &entity.UserProfile{UserId: delta.UserId}
		f.profiles[delta.UserId] = p
	}
	p.Merge(delta)
	return p, nil
}

func (f *fakeStore) MarkReconcile(ctx context.Context, sessionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconcile[sessionID] = true
	return nil
}

func (f *fakeStore) persisted(id uuid.UUID) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.appendedAt[id]
	return at, ok
}

type fakeEmbedder struct {
	mu    sync.Mutex
	fails int
}

func (f *fakeEmbedder) Generate(ctx context.Context, text string, taskType string) (*embedding.EmbeddingResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return nil, errors.New("embedding backend down")
	}
	return &embedding.EmbeddingResponse{Embedding: embedding.EmbeddingResponseEmbedding{Values: []float32{0.6, 0.8, 0}}}, nil
}

// orderedVectors checks that the relational write happened before each upsert.
type orderedVectors struct {
	vectorstore.Store
	store     *fakeStore
	violation bool
}

func (o *orderedVectors) Upsert(ctx context.Context, id string, vector []float32, md vectorstore.Metadata) error {
	at, ok := o.store.persisted(uuid.MustParse(id))
	if !ok || at.After(time.Now()) {
		o.violation = true
	}
	return o.Store.Upsert(ctx, id, vector, md)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType()
	}
	return out
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []ReembedJob
}

func (r *recordingQueue) Enqueue(ctx context.Context, job ReembedJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return nil
}
