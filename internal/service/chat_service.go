package service

import (
	"context"
	"strings"
	"time"

	"plant-assistant-be/internal/constant"
	"plant-assistant-be/internal/dto"
	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/pkg/logger"
	"plant-assistant-be/internal/repository/specification"
	"plant-assistant-be/internal/repository/unitofwork"
	"plant-assistant-be/pkg/assistant/generator"
	"plant-assistant-be/pkg/assistant/state"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Workflow is the orchestrator as seen by the chat service.
type Workflow interface {
	Run(ctx context.Context, req state.Request) *state.State
	RunStream(ctx context.Context, req state.Request, emit generator.EmitFunc) *state.State
}

type IChatService interface {
	SendMessage(ctx context.Context, userId uuid.UUID, request *dto.SendMessageRequest) (*dto.SendMessageResponse, error)
	// OpenStream resolves the session up front so request errors surface before any chunk is sent.
	OpenStream(ctx context.Context, userId uuid.UUID, request *dto.SendMessageRequest) (*ChatStream, error)
}

// ChatStream is a prepared turn waiting to be streamed.
type ChatStream struct {
	workflow Workflow
	req      state.Request
}

func (s *ChatStream) SessionID() uuid.UUID {
	return s.req.SessionID
}

// Run streams the reply through emit and returns the final response. Cancelling
// ctx or failing emit stops the stream; the response is then marked partial.
func (s *ChatStream) Run(ctx context.Context, emit generator.EmitFunc) *dto.SendMessageResponse {
	st := s.workflow.RunStream(ctx, s.req, emit)
	return toSendMessageResponse(st)
}

type chatService struct {
	uowFactory unitofwork.RepositoryFactory
	workflow   Workflow
	logger     logger.ILogger
}

func NewChatService(uowFactory unitofwork.RepositoryFactory, workflow Workflow, logger logger.ILogger) IChatService {
	return &chatService{
		uowFactory: uowFactory,
		workflow:   workflow,
		logger:     logger,
	}
}

func (cs *chatService) SendMessage(ctx context.Context, userId uuid.UUID, request *dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	req, err := cs.prepare(ctx, userId, request)
	if err != nil {
		return nil, err
	}
	st := cs.workflow.Run(ctx, req)
	return toSendMessageResponse(st), nil
}

func (cs *chatService) OpenStream(ctx context.Context, userId uuid.UUID, request *dto.SendMessageRequest) (*ChatStream, error) {
	req, err := cs.prepare(ctx, userId, request)
	if err != nil {
		return nil, err
	}
	return &ChatStream{workflow: cs.workflow, req: req}, nil
}

// prepare resolves the session and turns the request into a workflow request.
func (cs *chatService) prepare(ctx context.Context, userId uuid.UUID, request *dto.SendMessageRequest) (state.Request, error) {
	sessionId, err := cs.resolveSession(ctx, userId, request.SessionId)
	if err != nil {
		return state.Request{}, err
	}

	req := state.Request{
		UserID:    userId,
		SessionID: sessionId,
		Message:   strings.TrimSpace(request.Message),
	}
	image := strings.TrimSpace(request.Image)
	switch {
	case image == "":
	case strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://"):
		req.ImageURL = image
	default:
		// data URLs carry a header before the base64 payload
		if i := strings.Index(image, ";base64,"); i >= 0 && strings.HasPrefix(image, "data:") {
			image = image[i+len(";base64,"):]
		}
		req.Image = image
	}
	return req, nil
}

func (cs *chatService) resolveSession(ctx context.Context, userId uuid.UUID, sessionId *uuid.UUID) (uuid.UUID, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	if sessionId != nil && *sessionId != uuid.Nil {
		session, err := uow.ChatSessionRepository().FindOne(ctx,
			specification.ByID{ID: *sessionId},
			specification.UserOwnedBy{UserID: userId},
		)
		if err != nil {
			return uuid.Nil, err
		}
		if session == nil {
			return uuid.Nil, fiber.NewError(fiber.StatusNotFound, "Session not found")
		}
		return session.Id, nil
	}

	now := time.Now()
	session := &entity.ChatSession{
		Id:             uuid.New(),
		UserId:         userId,
		Title:          constant.DefaultSessionTitle,
		LastActivityAt: now,
		CreatedAt:      now,
	}
	if err := uow.ChatSessionRepository().Create(ctx, session); err != nil {
		return uuid.Nil, err
	}

	cs.logger.Info("CHAT", "Session created", map[string]interface{}{
		"session_id": session.Id.String(),
		"user_id":    userId.String(),
	})
	return session.Id, nil
}

func toSendMessageResponse(st *state.State) *dto.SendMessageResponse {
	res := &dto.SendMessageResponse{
		Message:        st.Reply.Message,
		SessionId:      st.Request.SessionID,
		Suggestions:    nonNil(st.Reply.Suggestions),
		RelatedActions: nonNil(st.Reply.RelatedActions),
		ToolsUsed:      nonNil(st.ToolsUsed()),
		Intent:         st.Intent(),
		Partial:        st.Reply.Partial,
	}
	if st.Persisted != nil {
		res.MessageId = st.Persisted.AssistantMessageID
	}
	return res
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
