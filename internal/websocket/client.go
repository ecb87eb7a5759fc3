package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"plant-assistant-be/internal/dto"
	"plant-assistant-be/internal/pkg/logger"
	"plant-assistant-be/internal/pkg/serverutils"
	"plant-assistant-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// room for a base64 photo in the request frame
	maxMessageSize = 8 << 20
)

const (
	frameTypeMessage = "message"
	turnBusyMessage  = "a reply is still streaming; send a cancel frame first"
)

var errClosed = errors.New("connection closed")

// Client is one chat socket. It runs at most one turn at a time.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn

	UserID uuid.UUID

	// Buffered channel of outbound frames.
	Send chan []byte

	chat   service.IChatService
	logger logger.ILogger

	ctx  context.Context
	stop context.CancelFunc

	mu         sync.Mutex
	cancelTurn context.CancelFunc
	closeOnce  sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, chat service.IChatService, log logger.ILogger) *Client {
	ctx, stop := context.WithCancel(context.Background())
	return &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, 256),
		chat:   chat,
		logger: log,
		ctx:    ctx,
		stop:   stop,
	}
}

func (c *Client) close() {
	c.closeOnce.Do(c.stop)
}

// readPump reads request and cancel frames until the peer goes away.
func (c *Client) readPump() {
	defer func() {
		c.Hub.remove(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WEBSOCKET", "Unexpected close", map[string]interface{}{
					"user_id": c.UserID.String(),
					"error":   err.Error(),
				})
			}
			return
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	var frame dto.SocketFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.pushError("malformed frame")
		return
	}

	switch frame.Type {
	case dto.StreamFrameCancel:
		c.mu.Lock()
		if c.cancelTurn != nil {
			c.cancelTurn()
		}
		c.mu.Unlock()

	case frameTypeMessage, "":
		req := frame.SendMessageRequest
		if err := serverutils.ValidateRequest(req); err != nil {
			c.pushError(errorMessage(err))
			return
		}
		c.startTurn(&req)

	default:
		c.pushError("unknown frame type " + frame.Type)
	}
}

func (c *Client) startTurn(req *dto.SendMessageRequest) {
	c.mu.Lock()
	if c.cancelTurn != nil {
		c.mu.Unlock()
		c.pushError(turnBusyMessage)
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancelTurn = cancel
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			c.cancelTurn = nil
			c.mu.Unlock()
			cancel()
		}()

		stream, err := c.chat.OpenStream(ctx, c.UserID, req)
		if err != nil {
			c.pushError(errorMessage(err))
			return
		}

		res := stream.Run(ctx, func(chunk string) error {
			return c.push(dto.StreamFrame{Type: dto.StreamFrameChunk, Content: chunk})
		})
		_ = c.push(dto.StreamFrame{Type: dto.StreamFrameDone, Done: res})
	}()
}

// push queues a frame for writePump. It fails once the socket is closing.
func (c *Client) push(frame dto.StreamFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	select {
	case c.Send <- data:
		return nil
	case <-c.ctx.Done():
		return errClosed
	}
}

func (c *Client) pushError(message string) {
	_ = c.push(dto.StreamFrame{Type: dto.StreamFrameError, Error: message})
}

// writePump pumps frames to the websocket connection and keeps it alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.ctx.Done():
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func errorMessage(err error) string {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	return "Internal server error"
}
