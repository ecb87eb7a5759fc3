package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plant-assistant-be/internal/constant"
	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/repository/specification"
	"plant-assistant-be/internal/repository/unitofwork"
	"plant-assistant-be/pkg/assistant/memory"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

var ErrSessionOwnership = errors.New("session belongs to another user")

// ConversationStore is the relational side of memory: sessions, messages and profiles over the unit of work.
type ConversationStore struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewConversationStore(uowFactory unitofwork.RepositoryFactory) *ConversationStore {
	return &ConversationStore{uowFactory: uowFactory}
}

// AppendTurn writes the turn's messages with the next sequence numbers and updates the session counters.
// The session row is locked for the duration, so concurrent appends on one session queue up in Postgres.
func (s *ConversationStore) AppendTurn(ctx context.Context, turn *memory.Turn) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	session, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.ByID{ID: turn.SessionID},
		specification.ForUpdate{},
	)
	if err != nil {
		return fmt.Errorf("lock session: %w", err)
	}

	isNew := session == nil
	if isNew {
		session = &entity.ChatSession{
			Id:        turn.SessionID,
			UserId:    turn.UserID,
			Title:     constant.DefaultSessionTitle,
			CreatedAt: turn.At,
		}
	} else if session.UserId != turn.UserID {
		return ErrSessionOwnership
	}

	maxSeq, err := uow.ChatMessageRepository().MaxSequence(ctx, turn.SessionID)
	if err != nil {
		return fmt.Errorf("read sequence: %w", err)
	}
	for i, m := range turn.Messages {
		m.SequenceNumber = maxSeq + 1 + i
		m.ChatSessionId = turn.SessionID
	}

	session.MessageCount += len(turn.Messages)
	session.LastActivityAt = turn.At
	session.Tags = memory.MergeTags(session.Tags, turn.Tags)
	if session.Title == constant.DefaultSessionTitle && turn.Title != "" {
		session.Title = turn.Title
	}

	if isNew {
		if err := uow.ChatSessionRepository().Create(ctx, session); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
	}

	if err := uow.ChatMessageRepository().CreateBulk(ctx, turn.Messages); err != nil {
		if isUniqueViolation(err) {
			return memory.ErrDuplicateTurn
		}
		return fmt.Errorf("insert messages: %w", err)
	}

	if !isNew {
		now := time.Now()
		session.UpdatedAt = &now
		if err := uow.ChatSessionRepository().Update(ctx, session); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
	}

	return uow.Commit()
}

func (s *ConversationStore) FetchWindow(ctx context.Context, sessionID uuid.UUID, n int) ([]*entity.ChatMessage, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.ChatMessageRepository().FindWindow(ctx, sessionID, n)
}

func (s *ConversationStore) GetProfile(ctx context.Context, userID uuid.UUID) (*entity.UserProfile, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.UserProfileRepository().FindByUserId(ctx, userID, false)
}

// UpsertProfile merges the delta under a row lock. The row is created empty first,
// so two first deltas for one user serialize on the lock instead of overwriting each other.
func (s *ConversationStore) UpsertProfile(ctx context.Context, delta entity.ProfileDelta) (*entity.UserProfile, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.UserProfileRepository().CreateEmpty(ctx, delta.UserId); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	profile, err := uow.UserProfileRepository().FindByUserId(ctx, delta.UserId, true)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("profile for %s vanished under lock", delta.UserId)
	}
	now := time.Now()
	profile.Merge(delta)
	profile.UpdatedAt = &now

	if err := uow.UserProfileRepository().Save(ctx, profile); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return profile, nil
}

// MarkReconcile flags the session and counts one more unit of work the reconciler owes it.
func (s *ConversationStore) MarkReconcile(ctx context.Context, sessionID uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.ChatSessionRepository().MarkReconcile(ctx, sessionID)
}

// ResolveReconcile is called by the reconciler after one repair succeeds. The session
// stays flagged while other jobs for it are still pending or were given up on.
func (s *ConversationStore) ResolveReconcile(ctx context.Context, sessionID uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.ChatSessionRepository().ResolveReconcile(ctx, sessionID)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
