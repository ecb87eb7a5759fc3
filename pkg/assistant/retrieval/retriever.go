// Package retrieval builds the context bundle for a turn from the session window,
// long-term vector memory and the user profile.
package retrieval

import (
	"context"
	"fmt"

	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/pkg/logger"
	"plant-assistant-be/pkg/assistant/state"
	"plant-assistant-be/pkg/embedding"
	"plant-assistant-be/pkg/vectorstore"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWindowSize = 10
	DefaultTopK       = 5
)

type WindowSource interface {
	// FetchWindow returns the last n messages of a session, oldest first.
	FetchWindow(ctx context.Context, sessionID uuid.UUID, n int) ([]*entity.ChatMessage, error)
}

type ProfileSource interface {
	// GetProfile returns nil without error when the user has no profile yet.
	GetProfile(ctx context.Context, userID uuid.UUID) (*entity.UserProfile, error)
}

type ProfileSnapshots interface {
	Get(userID uuid.UUID) (*entity.UserProfile, bool)
	Save(profile *entity.UserProfile)
}

type Retriever struct {
	window     WindowSource
	profiles   ProfileSource
	snapshots  ProfileSnapshots
	embedder   embedding.EmbeddingProvider
	store      vectorstore.Store
	windowSize int
	topK       int
	logger     logger.ILogger
}

func New(
	window WindowSource,
	profiles ProfileSource,
	snapshots ProfileSnapshots,
	embedder embedding.EmbeddingProvider,
	store vectorstore.Store,
	windowSize, topK int,
	logger logger.ILogger,
) *Retriever {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{
		window:     window,
		profiles:   profiles,
		snapshots:  snapshots,
		embedder:   embedder,
		store:      store,
		windowSize: windowSize,
		topK:       topK,
		logger:     logger,
	}
}

// Window loads the trailing conversation window. A brand new session yields an empty, non-nil slice.
func (r *Retriever) Window(ctx context.Context, sessionID uuid.UUID) ([]*entity.ChatMessage, error) {
	msgs, err := r.window.FetchWindow(ctx, sessionID, r.windowSize)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []*entity.ChatMessage{}
	}
	return msgs, nil
}

// Retrieve fills st.Context. Each source degrades to empty on failure and the
// failure is recorded on st; Retrieve itself never fails the turn.
// A window already loaded by an earlier node is reused.
func (r *Retriever) Retrieve(ctx context.Context, st *state.State) {
	var (
		window   = st.Context.Window
		memories []vectorstore.Match
		profile  *entity.UserProfile

		windowErr, memoryErr, profileErr error
	)

	g := new(errgroup.Group)
	g.SetLimit(3)

	if window == nil {
		g.Go(func() error {
			window, windowErr = r.Window(ctx, st.Request.SessionID)
			return nil
		})
	}
	g.Go(func() error {
		memories, memoryErr = r.memories(ctx, st.Request.UserID, st.Request.Message)
		return nil
	})
	g.Go(func() error {
		profile, profileErr = r.profile(ctx, st.Request.UserID)
		return nil
	})
	_ = g.Wait()

	for _, f := range []struct {
		source string
		err    error
	}{{"window", windowErr}, {"vector", memoryErr}, {"profile", profileErr}} {
		if f.err == nil {
			continue
		}
		st.Fail(state.KindRetrieval, state.NodeRetrieveContext, fmt.Errorf("%s: %w", f.source, f.err))
		r.logger.Warn("RETRIEVAL", "Context source degraded", map[string]interface{}{
			"source":     f.source,
			"session_id": st.Request.SessionID.String(),
			"error":      f.err.Error(),
		})
	}

	st.Context = state.ContextBundle{
		Window:   window,
		Memories: excludeWindow(memories, window),
		Profile:  profile,
	}

	r.logger.Debug("RETRIEVAL", "Context assembled", map[string]interface{}{
		"window":      len(st.Context.Window),
		"memories":    len(st.Context.Memories),
		"has_profile": profile != nil,
	})
}

func (r *Retriever) memories(ctx context.Context, userID uuid.UUID, message string) ([]vectorstore.Match, error) {
	emb, err := r.embedder.Generate(ctx, message, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := r.store.Query(ctx, emb.Embedding.Values, userID.String(), r.topK)
	if err != nil {
		return nil, err
	}
	vectorstore.Rank(matches)
	if len(matches) > r.topK {
		matches = matches[:r.topK]
	}
	return matches, nil
}

func (r *Retriever) profile(ctx context.Context, userID uuid.UUID) (*entity.UserProfile, error) {
	if p, ok := r.snapshots.Get(userID); ok {
		return p, nil
	}
	p, err := r.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		r.snapshots.Save(p)
	}
	return p, nil
}

// excludeWindow drops memories of exchanges that are already in the window verbatim.
func excludeWindow(matches []vectorstore.Match, window []*entity.ChatMessage) []vectorstore.Match {
	if len(matches) == 0 || len(window) == 0 {
		return matches
	}
	inWindow := make(map[string]bool, len(window))
	for _, m := range window {
		inWindow[m.Id.String()] = true
	}
	out := make([]vectorstore.Match, 0, len(matches))
	for _, m := range matches {
		if !inWindow[m.ID] {
			out = append(out, m)
		}
	}
	return out
}
