package service

import (
	"context"
	"encoding/json"
	"time"

	"plant-assistant-be/internal/pkg/logger"
	"plant-assistant-be/pkg/assistant/memory"
	"plant-assistant-be/pkg/events"
	pktNats "plant-assistant-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

const (
	maxReembedAttempts = 5
	reembedBaseDelay   = 2 * time.Second
	reconcileDurable   = "memory-reconciler"
)

// MemoryRepairer replays work the memory updater could not finish inline.
type MemoryRepairer interface {
	Replay(ctx context.Context, turn *memory.Turn) error
	Reembed(ctx context.Context, job memory.ReembedJob) error
}

type reconcileFlags interface {
	ResolveReconcile(ctx context.Context, sessionID uuid.UUID) error
}

type IReconcilerService interface {
	Start(ctx context.Context) error
}

// reconcilerService drains the re-embed queue and replays turns whose append failed.
// Each successful repair resolves one unit of the session's pending work; exhausted
// jobs are never resolved, so their session keeps its flag.
type reconcilerService struct {
	pubSub     *gochannel.GoChannel
	topicName  string
	queue      memory.ReembedQueue
	repairer   MemoryRepairer
	flags      reconcileFlags
	subscriber *pktNats.Subscriber
	logger     logger.ILogger
	delay      func(attempt int) time.Duration
}

// NewReconcilerService takes an optional NATS subscriber; without one only the re-embed queue is drained.
func NewReconcilerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	queue memory.ReembedQueue,
	repairer MemoryRepairer,
	flags reconcileFlags,
	subscriber *pktNats.Subscriber,
	logger logger.ILogger,
) IReconcilerService {
	return &reconcilerService{
		pubSub:     pubSub,
		topicName:  topicName,
		queue:      queue,
		repairer:   repairer,
		flags:      flags,
		subscriber: subscriber,
		logger:     logger,
		delay: func(attempt int) time.Duration {
			return reembedBaseDelay << (attempt - 1)
		},
	}
}

func (rs *reconcilerService) Start(ctx context.Context) error {
	messages, err := rs.pubSub.Subscribe(ctx, rs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			rs.processReembed(ctx, msg)
		}
	}()

	if rs.subscriber != nil {
		if err := rs.subscriber.Subscribe(ctx, events.TypeReconcileRequired, reconcileDurable, rs.handleReconcile); err != nil {
			return err
		}
	}
	return nil
}

func (rs *reconcilerService) processReembed(ctx context.Context, msg *message.Message) {
	var job memory.ReembedJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		rs.logger.Error("RECONCILER", "Dropping malformed re-embed job", map[string]interface{}{"error": err.Error()})
		msg.Ack()
		return
	}
	job.Attempt++

	if err := rs.repairer.Reembed(ctx, job); err != nil {
		msg.Ack()
		if job.Attempt >= maxReembedAttempts {
			rs.logger.Error("RECONCILER", "Re-embed attempts exhausted, session stays flagged", map[string]interface{}{
				"message_id": job.MessageID.String(),
				"session_id": job.SessionID.String(),
				"attempt":    job.Attempt,
				"error":      err.Error(),
			})
			return
		}
		rs.logger.Warn("RECONCILER", "Re-embed failed, requeueing", map[string]interface{}{
			"message_id": job.MessageID.String(),
			"attempt":    job.Attempt,
			"error":      err.Error(),
		})
		// requeue with the bumped attempt instead of nacking, which would redeliver immediately
		time.AfterFunc(rs.delay(job.Attempt), func() {
			if err := rs.queue.Enqueue(context.WithoutCancel(ctx), job); err != nil {
				rs.logger.Error("RECONCILER", "Requeue failed", map[string]interface{}{
					"message_id": job.MessageID.String(),
					"error":      err.Error(),
				})
			}
		})
		return
	}

	rs.resolve(ctx, job.SessionID)
	rs.logger.Info("RECONCILER", "Exchange re-embedded", map[string]interface{}{
		"message_id": job.MessageID.String(),
		"attempt":    job.Attempt,
	})
	msg.Ack()
}

func (rs *reconcilerService) handleReconcile(ctx context.Context, event events.Event) error {
	turn, err := memory.TurnFromPayload(event.Payload())
	if err != nil {
		rs.logger.Error("RECONCILER", "Reconcile event without a turn", map[string]interface{}{"error": err.Error()})
		return nil
	}

	if err := rs.repairer.Replay(ctx, turn); err != nil {
		rs.logger.Warn("RECONCILER", "Turn replay failed", map[string]interface{}{
			"session_id": turn.SessionID.String(),
			"error":      err.Error(),
		})
		return err
	}

	rs.resolve(ctx, turn.SessionID)
	rs.logger.Info("RECONCILER", "Turn replayed", map[string]interface{}{
		"session_id": turn.SessionID.String(),
		"messages":   len(turn.Messages),
	})
	return nil
}

func (rs *reconcilerService) resolve(ctx context.Context, sessionID uuid.UUID) {
	if err := rs.flags.ResolveReconcile(ctx, sessionID); err != nil {
		rs.logger.Warn("RECONCILER", "Could not resolve reconcile work", map[string]interface{}{
			"session_id": sessionID.String(),
			"error":      err.Error(),
		})
	}
}
