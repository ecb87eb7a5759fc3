package mapper

import (
	"encoding/json"
	"time"

	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Session Mappers

func (m *ChatMapper) ChatSessionToEntity(s *model.ChatSession) *entity.ChatSession {
	if s == nil {
		return nil
	}

	var deletedAt *time.Time
	if s.DeletedAt.Valid {
		t := s.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	return &entity.ChatSession{
		Id:             s.Id,
		UserId:         s.UserId,
		Title:          s.Title,
		MessageCount:   s.MessageCount,
		LastActivityAt: s.LastActivityAt,
		Tags:           decodeStrings(s.Tags),
		NeedsReconcile: s.NeedsReconcile,
		ReconcileCount: s.ReconcileCount,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
		IsDeleted:      s.DeletedAt.Valid,
	}
}

func (m *ChatMapper) ChatSessionToModel(s *entity.ChatSession) *model.ChatSession {
	if s == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if s.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *s.DeletedAt, Valid: true}
	} else if s.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if s.UpdatedAt != nil {
		updatedAt = *s.UpdatedAt
	}

	return &model.ChatSession{
		Id:             s.Id,
		UserId:         s.UserId,
		Title:          s.Title,
		MessageCount:   s.MessageCount,
		LastActivityAt: s.LastActivityAt,
		Tags:           encodeJSON(s.Tags),
		NeedsReconcile: s.NeedsReconcile,
		ReconcileCount: s.ReconcileCount,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
	}
}

// Message Mappers

func (m *ChatMapper) ChatMessageToEntity(msg *model.ChatMessage) *entity.ChatMessage {
	if msg == nil {
		return nil
	}

	return &entity.ChatMessage{
		Id:             msg.Id,
		ChatSessionId:  msg.ChatSessionId,
		SequenceNumber: msg.SequenceNumber,
		Role:           msg.Role,
		Chat:           msg.Chat,
		Intent:         msg.Intent,
		Species:        msg.Species,
		Confidence:     msg.Confidence,
		HasImage:       msg.HasImage,
		ImageUrl:       msg.ImageUrl,
		Partial:        msg.Partial,
		EmbeddingId:    msg.EmbeddingId,
		CreatedAt:      msg.CreatedAt,
	}
}

func (m *ChatMapper) ChatMessageToModel(msg *entity.ChatMessage) *model.ChatMessage {
	if msg == nil {
		return nil
	}

	return &model.ChatMessage{
		Id:             msg.Id,
		ChatSessionId:  msg.ChatSessionId,
		SequenceNumber: msg.SequenceNumber,
		Role:           msg.Role,
		Chat:           msg.Chat,
		Intent:         msg.Intent,
		Species:        msg.Species,
		Confidence:     msg.Confidence,
		HasImage:       msg.HasImage,
		ImageUrl:       msg.ImageUrl,
		Partial:        msg.Partial,
		EmbeddingId:    msg.EmbeddingId,
		CreatedAt:      msg.CreatedAt,
	}
}

func (m *ChatMapper) ChatMessagesToEntities(models []*model.ChatMessage) []*entity.ChatMessage {
	entities := make([]*entity.ChatMessage, len(models))
	for i, msg := range models {
		entities[i] = m.ChatMessageToEntity(msg)
	}
	return entities
}

// Feedback Mappers

func (m *ChatMapper) FeedbackToEntity(f *model.MessageFeedback) *entity.MessageFeedback {
	if f == nil {
		return nil
	}
	return &entity.MessageFeedback{
		Id:            f.Id,
		ChatMessageId: f.ChatMessageId,
		UserId:        f.UserId,
		Rating:        f.Rating,
		FeedbackType:  f.FeedbackType,
		Comment:       f.Comment,
		CreatedAt:     f.CreatedAt,
	}
}

func (m *ChatMapper) FeedbackToModel(f *entity.MessageFeedback) *model.MessageFeedback {
	if f == nil {
		return nil
	}
	return &model.MessageFeedback{
		Id:            f.Id,
		ChatMessageId: f.ChatMessageId,
		UserId:        f.UserId,
		Rating:        f.Rating,
		FeedbackType:  f.FeedbackType,
		Comment:       f.Comment,
		CreatedAt:     f.CreatedAt,
	}
}

func encodeJSON(v interface{}) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}

func decodeStrings(raw datatypes.JSON) []string {
	out := []string{}
	if len(raw) == 0 {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	if out == nil {
		out = []string{}
	}
	return out
}
