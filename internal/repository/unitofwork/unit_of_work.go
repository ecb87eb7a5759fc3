package unitofwork

import (
	"context"

	"plant-assistant-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ChatSessionRepository() contract.ChatSessionRepository
	ChatMessageRepository() contract.ChatMessageRepository
	UserProfileRepository() contract.UserProfileRepository
	MessageFeedbackRepository() contract.MessageFeedbackRepository
	MemoryRecordRepository() contract.MemoryRecordRepository
}
