// Package memory persists finished turns: relational history first, then the
// exchange embedding, then the rolling user profile.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"plant-assistant-be/internal/constant"
	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/pkg/logger"
	"plant-assistant-be/pkg/assistant/state"
	"plant-assistant-be/pkg/assistant/tool"
	"plant-assistant-be/pkg/embedding"
	"plant-assistant-be/pkg/events"
	"plant-assistant-be/pkg/vectorstore"

	"github.com/google/uuid"
)

const appendRetryDelay = 200 * time.Millisecond

type Updater struct {
	store     ConversationStore
	guard     Guard
	embedder  embedding.EmbeddingProvider
	vectors   vectorstore.Store
	snapshots ProfileSnapshots
	publisher EventPublisher
	reembed   ReembedQueue
	logger    logger.ILogger
}

type Deps struct {
	Store     ConversationStore
	Guard     Guard
	Embedder  embedding.EmbeddingProvider
	Vectors   vectorstore.Store
	Snapshots ProfileSnapshots
	Publisher EventPublisher // optional
	Reembed   ReembedQueue   // optional
	Logger    logger.ILogger
}

func NewUpdater(d Deps) *Updater {
	if d.Guard == nil {
		d.Guard = NewLocalGuard()
	}
	return &Updater{
		store:     d.Store,
		guard:     d.Guard,
		embedder:  d.Embedder,
		vectors:   d.Vectors,
		snapshots: d.Snapshots,
		publisher: d.Publisher,
		reembed:   d.Reembed,
		logger:    d.Logger,
	}
}

// Persist stores the turn held by st. Failures are recorded on st and never
// reach the user; the returned error only reports whether history was written.
func (u *Updater) Persist(ctx context.Context, st *state.State) error {
	turn := BuildTurn(st)

	if err := u.appendWithRetry(ctx, turn); err != nil {
		st.Fail(state.KindPersistence, state.NodeUpdateMemory, err)
		u.flagSession(ctx, turn.SessionID, "append failed", err)
		u.publish(ctx, events.NewReconcileRequired(TurnPayload(turn)))
		return err
	}

	persisted := &state.Persisted{UserMessageID: turn.Messages[0].Id}
	if a := assistantMessage(turn); a != nil {
		persisted.AssistantMessageID = a.Id
	}
	st.Persisted = persisted

	u.publish(ctx, events.NewTurnCompleted(map[string]interface{}{
		"session_id":   turn.SessionID.String(),
		"user_id":      turn.UserID.String(),
		"intent":       st.Intent(),
		"tools_used":   st.ToolsUsed(),
		"partial":      st.Reply.Partial,
		"degraded":     st.Reply.Degraded,
		"failures":     len(st.Failures),
		"duration_ms":  time.Since(st.StartedAt).Milliseconds(),
		"message_id":   persisted.AssistantMessageID.String(),
		"sequence_end": turn.Messages[len(turn.Messages)-1].SequenceNumber,
	}))

	if job, ok := exchangeJob(turn); ok {
		if err := u.embed(ctx, job); err != nil {
			st.Fail(state.KindPersistence, state.NodeUpdateMemory, fmt.Errorf("embed exchange: %w", err))
			u.queueReembed(ctx, job, err)
		} else {
			persisted.Embedded = true
		}
	}

	if profile, err := u.store.UpsertProfile(ctx, ProfileDelta(st)); err != nil {
		st.Fail(state.KindPersistence, state.NodeUpdateMemory, fmt.Errorf("update profile: %w", err))
		u.logger.Error("MEMORY", "Profile update failed", map[string]interface{}{
			"user_id": turn.UserID.String(),
			"error":   err.Error(),
		})
		u.snapshots.Delete(turn.UserID)
	} else {
		u.snapshots.Save(profile)
	}

	return nil
}

// Replay re-runs persistence for a turn whose append failed earlier. It is idempotent.
func (u *Updater) Replay(ctx context.Context, turn *Turn) error {
	err := u.append(ctx, turn)
	if err != nil && !errors.Is(err, ErrDuplicateTurn) {
		return err
	}
	if job, ok := exchangeJob(turn); ok {
		if err := u.embed(ctx, job); err != nil {
			return fmt.Errorf("embed replayed turn: %w", err)
		}
	}
	return nil
}

// Reembed retries a vector upsert queued by Persist.
func (u *Updater) Reembed(ctx context.Context, job ReembedJob) error {
	return u.embed(ctx, job)
}

func (u *Updater) appendWithRetry(ctx context.Context, turn *Turn) error {
	err := u.append(ctx, turn)
	if err == nil || errors.Is(err, ErrDuplicateTurn) {
		return nil
	}

	u.logger.Warn("MEMORY", "Append failed, retrying once", map[string]interface{}{
		"session_id": turn.SessionID.String(),
		"error":      err.Error(),
	})

	select {
	case <-time.After(appendRetryDelay):
	case <-ctx.Done():
		return fmt.Errorf("append turn: %w", ctx.Err())
	}

	err = u.append(ctx, turn)
	if err == nil || errors.Is(err, ErrDuplicateTurn) {
		return nil
	}
	return fmt.Errorf("append turn: %w", err)
}

// append holds the session guard only around the relational write.
func (u *Updater) append(ctx context.Context, turn *Turn) error {
	unlock, err := u.guard.Lock(ctx, turn.SessionID)
	if err != nil {
		// the session row lock in AppendTurn still orders writers
		u.logger.Warn("MEMORY", "Session guard unavailable", map[string]interface{}{
			"session_id": turn.SessionID.String(),
			"error":      err.Error(),
		})
	} else {
		defer unlock()
	}
	return u.store.AppendTurn(ctx, turn)
}

func (u *Updater) embed(ctx context.Context, job ReembedJob) error {
	emb, err := u.embedder.Generate(ctx, job.Content, embedding.TaskRetrievalDocument)
	if err != nil {
		return err
	}
	return u.vectors.Upsert(ctx, job.MessageID.String(), emb.Embedding.Values, vectorstore.Metadata{
		UserID:    job.UserID.String(),
		SessionID: job.SessionID.String(),
		Role:      "exchange",
		Content:   job.Content,
		Tags:      job.Tags,
		Timestamp: job.At,
	})
}

func (u *Updater) queueReembed(ctx context.Context, job ReembedJob, cause error) {
	u.flagSession(ctx, job.SessionID, "embedding failed", cause)
	if u.reembed == nil {
		return
	}
	if err := u.reembed.Enqueue(ctx, job); err != nil {
		u.logger.Error("MEMORY", "Failed to queue re-embed", map[string]interface{}{
			"message_id": job.MessageID.String(),
			"error":      err.Error(),
		})
	}
}

func (u *Updater) flagSession(ctx context.Context, sessionID uuid.UUID, reason string, cause error) {
	u.logger.Error("MEMORY", "Session flagged for reconciliation", map[string]interface{}{
		"session_id": sessionID.String(),
		"reason":     reason,
		"error":      cause.Error(),
	})
	if err := u.store.MarkReconcile(ctx, sessionID); err != nil {
		u.logger.Warn("MEMORY", "Could not flag session", map[string]interface{}{
			"session_id": sessionID.String(),
			"error":      err.Error(),
		})
	}
}

func (u *Updater) publish(ctx context.Context, event events.Event) {
	if u.publisher == nil {
		return
	}
	if err := u.publisher.Publish(ctx, event); err != nil {
		u.logger.Warn("MEMORY", "Event publish failed", map[string]interface{}{
			"event": event.EventType(),
			"error": err.Error(),
		})
	}
}

// BuildTurn turns the run's request and reply into messages with fresh ids.
// Both messages point at the assistant id, which keys the exchange embedding.
func BuildTurn(st *state.State) *Turn {
	now := time.Now()
	intent := st.Intent()
	species := st.Species()

	userMsg := &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: st.Request.SessionID,
		Role:          constant.ChatMessageRoleUser,
		Chat:          st.Request.Message,
		Intent:        intent,
		HasImage:      st.Request.HasImage(),
		CreatedAt:     now,
	}
	if st.Request.ImageURL != "" {
		url := st.Request.ImageURL
		userMsg.ImageUrl = &url
	}
	if st.Analysis != nil && len(st.Analysis.Entities.Species) > 0 {
		sp := st.Analysis.Entities.Species[0]
		userMsg.Species = &sp
	}

	turn := &Turn{
		SessionID: st.Request.SessionID,
		UserID:    st.Request.UserID,
		Messages:  []*entity.ChatMessage{userMsg},
		Tags:      MergeTags([]string{intent}, species),
		Title:     DeriveTitle(st.Request.Message),
		At:        now,
	}

	// a stream cancelled before its first chunk leaves nothing to store
	if strings.TrimSpace(st.Reply.Message) == "" {
		return turn
	}

	assistantMsg := &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: st.Request.SessionID,
		Role:          constant.ChatMessageRoleAssistant,
		Chat:          st.Reply.Message,
		Intent:        intent,
		Partial:       st.Reply.Partial,
		CreatedAt:     now.Add(time.Millisecond),
	}
	if d, ok := st.Diagnosis(); ok && d.PlantIdentification.Species != "" {
		sp := d.PlantIdentification.Species
		conf := d.PlantIdentification.Confidence
		assistantMsg.Species = &sp
		assistantMsg.Confidence = &conf
	}

	embeddingID := assistantMsg.Id
	userMsg.EmbeddingId = &embeddingID
	assistantMsg.EmbeddingId = &embeddingID

	turn.Messages = append(turn.Messages, assistantMsg)
	return turn
}

func assistantMessage(turn *Turn) *entity.ChatMessage {
	for _, m := range turn.Messages {
		if m.Role == constant.ChatMessageRoleAssistant {
			return m
		}
	}
	return nil
}

func exchangeJob(turn *Turn) (ReembedJob, bool) {
	a := assistantMessage(turn)
	if a == nil {
		return ReembedJob{}, false
	}
	return ReembedJob{
		MessageID: a.Id,
		SessionID: turn.SessionID,
		UserID:    turn.UserID,
		Content:   fmt.Sprintf("user: %s\nassistant: %s", turn.Messages[0].Chat, a.Chat),
		Tags:      turn.Tags,
		At:        turn.At,
	}, true
}

// ProfileDelta collects what this turn teaches about the user. Counters only grow.
func ProfileDelta(st *state.State) entity.ProfileDelta {
	delta := entity.ProfileDelta{
		UserId: st.Request.UserID,
		Topics: map[string]int{st.Intent(): 1},
	}
	for _, sp := range st.Species() {
		delta.Topics["species:"+strings.ToLower(sp)]++
	}

	for _, inv := range st.SucceededTools() {
		switch res := inv.Result.(type) {
		case tool.Preference:
			delta.ExperienceLevel = res.ExperienceLevel
			delta.CommunicationStyle = res.CommunicationStyle
			if res.Plant != "" {
				delta.Plants = append(delta.Plants, res.Plant)
			}
		case tool.Diagnosis:
			sp := res.PlantIdentification.Species
			if sp == "" {
				continue
			}
			// only a diagnosed photo shows the user's own plant
			if st.Request.HasImage() {
				delta.Plants = append(delta.Plants, sp)
			}
			if !res.Healthy() && len(res.TreatmentRecommendations) > 0 {
				delta.Treatments = append(delta.Treatments, entity.TreatmentRecord{
					Species:   sp,
					Condition: res.HealthAssessment.Condition,
					Treatment: strings.Join(res.TreatmentRecommendations, "; "),
					SessionId: st.Request.SessionID,
					At:        time.Now(),
				})
			}
		}
	}
	return delta
}
