package service

import (
	"context"
	"time"

	"plant-assistant-be/internal/dto"
	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/pkg/logger"
	"plant-assistant-be/internal/repository/specification"
	"plant-assistant-be/internal/repository/unitofwork"
	"plant-assistant-be/pkg/assistant/memory"
	"plant-assistant-be/pkg/events"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IFeedbackService interface {
	Submit(ctx context.Context, userId uuid.UUID, request *dto.SubmitFeedbackRequest) (*dto.SubmitFeedbackResponse, error)
}

type feedbackService struct {
	uowFactory unitofwork.RepositoryFactory
	publisher  memory.EventPublisher
	logger     logger.ILogger
}

// NewFeedbackService takes an optional publisher; nil disables the feedback event.
func NewFeedbackService(uowFactory unitofwork.RepositoryFactory, publisher memory.EventPublisher, logger logger.ILogger) IFeedbackService {
	return &feedbackService{
		uowFactory: uowFactory,
		publisher:  publisher,
		logger:     logger,
	}
}

func (fs *feedbackService) Submit(ctx context.Context, userId uuid.UUID, request *dto.SubmitFeedbackRequest) (*dto.SubmitFeedbackResponse, error) {
	uow := fs.uowFactory.NewUnitOfWork(ctx)

	message, err := uow.ChatMessageRepository().FindOne(ctx,
		specification.ByID{ID: request.MessageId},
		specification.MessageOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if message == nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "Message not found")
	}

	feedback := &entity.MessageFeedback{
		Id:            uuid.New(),
		ChatMessageId: message.Id,
		UserId:        userId,
		Rating:        request.Rating,
		FeedbackType:  request.FeedbackType,
		Comment:       request.Comment,
		CreatedAt:     time.Now(),
	}
	if err := uow.MessageFeedbackRepository().Create(ctx, feedback); err != nil {
		return nil, err
	}

	if fs.publisher != nil {
		event := events.NewFeedbackSubmitted(map[string]interface{}{
			"feedback_id":   feedback.Id.String(),
			"message_id":    message.Id.String(),
			"session_id":    message.ChatSessionId.String(),
			"user_id":       userId.String(),
			"rating":        feedback.Rating,
			"feedback_type": feedback.FeedbackType,
			"intent":        message.Intent,
		})
		if err := fs.publisher.Publish(ctx, event); err != nil {
			fs.logger.Warn("FEEDBACK", "Event publish failed", map[string]interface{}{
				"feedback_id": feedback.Id.String(),
				"error":       err.Error(),
			})
		}
	}

	return &dto.SubmitFeedbackResponse{FeedbackId: feedback.Id}, nil
}
