package service

import (
	"context"
	"strings"
	"time"

	"plant-assistant-be/internal/dto"
	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/repository/specification"
	"plant-assistant-be/internal/repository/unitofwork"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const defaultSessionPageSize = 20

type ISessionService interface {
	List(ctx context.Context, userId uuid.UUID, request *dto.ListSessionsRequest) ([]*dto.SessionSummaryResponse, error)
	Detail(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*dto.SessionDetailResponse, error)
	Rename(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, request *dto.UpdateSessionRequest) (*dto.SessionSummaryResponse, error)
}

type sessionService struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewSessionService(uowFactory unitofwork.RepositoryFactory) ISessionService {
	return &sessionService{uowFactory: uowFactory}
}

func (ss *sessionService) List(ctx context.Context, userId uuid.UUID, request *dto.ListSessionsRequest) ([]*dto.SessionSummaryResponse, error) {
	limit := request.Limit
	if limit <= 0 {
		limit = defaultSessionPageSize
	}

	uow := ss.uowFactory.NewUnitOfWork(ctx)
	sessions, err := uow.ChatSessionRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "last_activity_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: request.Offset},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.SessionSummaryResponse, 0, len(sessions))
	for _, s := range sessions {
		summary := toSessionSummary(s)
		res = append(res, &summary)
	}
	return res, nil
}

func (ss *sessionService) Detail(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*dto.SessionDetailResponse, error) {
	uow := ss.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.ByID{ID: sessionId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "Session not found")
	}

	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "sequence_number"},
	)
	if err != nil {
		return nil, err
	}

	res := &dto.SessionDetailResponse{
		SessionSummaryResponse: toSessionSummary(session),
		CreatedAt:              session.CreatedAt,
		Messages:               make([]*dto.SessionMessageResponse, 0, len(messages)),
	}
	for _, m := range messages {
		res.Messages = append(res.Messages, &dto.SessionMessageResponse{
			Id:             m.Id,
			Role:           m.Role,
			Content:        m.Chat,
			SequenceNumber: m.SequenceNumber,
			Species:        m.Species,
			Confidence:     m.Confidence,
			HasImage:       m.HasImage,
			ImageUrl:       m.ImageUrl,
			Intent:         m.Intent,
			Partial:        m.Partial,
			CreatedAt:      m.CreatedAt,
		})
	}
	return res, nil
}

// Rename takes the session row lock so it serializes with AppendTurn, whose counters it rewrites.
func (ss *sessionService) Rename(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, request *dto.UpdateSessionRequest) (*dto.SessionSummaryResponse, error) {
	title := strings.TrimSpace(request.Title)
	if title == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Title must not be blank")
	}

	uow := ss.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	session, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.ByID{ID: sessionId},
		specification.UserOwnedBy{UserID: userId},
		specification.ForUpdate{},
	)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "Session not found")
	}

	now := time.Now()
	session.Title = title
	session.UpdatedAt = &now
	if err := uow.ChatSessionRepository().Update(ctx, session); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	res := toSessionSummary(session)
	return &res, nil
}

func toSessionSummary(s *entity.ChatSession) dto.SessionSummaryResponse {
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}
	return dto.SessionSummaryResponse{
		SessionId:    s.Id,
		Title:        s.Title,
		MessageCount: s.MessageCount,
		LastActivity: s.LastActivityAt,
		Tags:         tags,
	}
}
