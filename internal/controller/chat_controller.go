package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"plant-assistant-be/internal/dto"
	"plant-assistant-be/internal/pkg/logger"
	"plant-assistant-be/internal/pkg/serverutils"
	"plant-assistant-be/internal/service"
	ws "plant-assistant-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	SendMessage(ctx *fiber.Ctx) error
	Feedback(ctx *fiber.Ctx) error
	ListSessions(ctx *fiber.Ctx) error
	SessionDetail(ctx *fiber.Ctx) error
	UpdateSession(ctx *fiber.Ctx) error
	Analytics(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService      service.IChatService
	sessionService   service.ISessionService
	feedbackService  service.IFeedbackService
	analyticsService service.IAnalyticsService
	hub              *ws.Hub
	logger           logger.ILogger
}

func NewChatController(
	chatService service.IChatService,
	sessionService service.ISessionService,
	feedbackService service.IFeedbackService,
	analyticsService service.IAnalyticsService,
	hub *ws.Hub,
	logger logger.ILogger,
) IChatController {
	return &chatController{
		chatService:      chatService,
		sessionService:   sessionService,
		feedbackService:  feedbackService,
		analyticsService: analyticsService,
		hub:              hub,
		logger:           logger,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("message", c.SendMessage)
	h.Post("feedback", c.Feedback)
	h.Get("sessions", c.ListSessions)
	h.Get("sessions/:id", c.SessionDetail)
	h.Put("sessions/:id", c.UpdateSession)
	h.Get("analytics", c.Analytics)
	h.Get("ws", c.upgrade, websocket.New(c.serveSocket))
}

func (c *chatController) SendMessage(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}

	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if !req.Stream {
		res, err := c.chatService.SendMessage(ctx.UserContext(), userId, &req)
		if err != nil {
			return err
		}
		return ctx.JSON(serverutils.SuccessResponse("Success send message", res))
	}

	stream, err := c.chatService.OpenStream(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}

	ctx.Set("Content-Type", "text/event-stream")
	ctx.Set("Cache-Control", "no-cache")
	ctx.Set("Connection", "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	// The writer runs after the handler returns, so it must not touch ctx.
	ctx.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		turnCtx, cancel := context.WithCancel(context.Background())
		defer cancel()

		res := stream.Run(turnCtx, func(chunk string) error {
			// a failed flush means the client went away
			return writeSSE(w, dto.StreamFrame{Type: dto.StreamFrameChunk, Content: chunk})
		})
		if err := writeSSE(w, dto.StreamFrame{Type: dto.StreamFrameDone, Done: res}); err != nil {
			c.logger.Debug("CHAT", "Client left before the done event", map[string]interface{}{
				"session_id": stream.SessionID().String(),
			})
		}
	})
	return nil
}

func (c *chatController) Feedback(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}

	var req dto.SubmitFeedbackRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.feedbackService.Submit(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Feedback received", res))
}

func (c *chatController) ListSessions(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}

	var req dto.ListSessionsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid query")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.sessionService.List(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get sessions", res))
}

func (c *chatController) SessionDetail(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}
	sessionId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid session id")
	}

	res, err := c.sessionService.Detail(ctx.UserContext(), userId, sessionId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get session", res))
}

func (c *chatController) UpdateSession(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}
	sessionId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid session id")
	}

	var req dto.UpdateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.sessionService.Rename(ctx.UserContext(), userId, sessionId, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Session updated", res))
}

func (c *chatController) Analytics(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}

	res, err := c.analyticsService.Get(ctx.UserContext(), userId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get analytics", res))
}

func (c *chatController) upgrade(ctx *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}
	return ctx.Next()
}

func (c *chatController) serveSocket(conn *websocket.Conn) {
	userIdStr, _ := conn.Locals("user_id").(string)
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return
	}
	ws.ServeChat(c.hub, conn, userId, c.chatService, c.logger)
}

func writeSSE(w *bufio.Writer, frame dto.StreamFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return w.Flush()
}
