package service

import (
	"context"
	"encoding/json"

	"plant-assistant-be/pkg/assistant/memory"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// ReembedQueue hands failed vector upserts to the reconciler over the in-process pub/sub.
type ReembedQueue struct {
	pubSub    *gochannel.GoChannel
	topicName string
}

func NewReembedQueue(pubSub *gochannel.GoChannel, topicName string) *ReembedQueue {
	return &ReembedQueue{pubSub: pubSub, topicName: topicName}
}

func (q *ReembedQueue) Enqueue(ctx context.Context, job memory.ReembedJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return q.pubSub.Publish(q.topicName, msg)
}
