package dto

import (
	"github.com/google/uuid"
)

type SendMessageRequest struct {
	Message   string     `json:"message" validate:"required,min=1,max=4000"`
	Image     string     `json:"image,omitempty"` // base64 payload or http(s) URL
	SessionId *uuid.UUID `json:"session_id,omitempty"`
	Stream    bool       `json:"stream"`
}

type SendMessageResponse struct {
	Message        string    `json:"message"`
	SessionId      uuid.UUID `json:"session_id"`
	MessageId      uuid.UUID `json:"message_id"`
	Suggestions    []string  `json:"suggestions"`
	RelatedActions []string  `json:"related_actions"`
	ToolsUsed      []string  `json:"tools_used"`
	Intent         string    `json:"intent"`
	Partial        bool      `json:"partial"`
}

const (
	StreamFrameChunk  = "chunk"
	StreamFrameDone   = "done"
	StreamFrameError  = "error"
	StreamFrameCancel = "cancel"
)

// StreamFrame is one SSE event or WebSocket frame of a streamed reply.
type StreamFrame struct {
	Type    string               `json:"type"`
	Content string               `json:"content,omitempty"`
	Done    *SendMessageResponse `json:"response,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// SocketFrame is what a WebSocket client sends: a chat request or a cancel.
type SocketFrame struct {
	Type string `json:"type"` // "message" or "cancel"
	SendMessageRequest
}
