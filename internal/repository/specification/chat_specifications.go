package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ByChatSessionID struct {
	ChatSessionID uuid.UUID
}

func (s ByChatSessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_session_id = ?", s.ChatSessionID)
}

// MessageOwnedBy restricts messages to sessions owned by the user.
type MessageOwnedBy struct {
	UserID uuid.UUID
}

func (s MessageOwnedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_session_id IN (?)",
		db.Session(&gorm.Session{NewDB: true}).Table("chat_sessions").Select("id").Where("user_id = ? AND deleted_at IS NULL", s.UserID))
}

// ByNamespace scopes memory records to one vector namespace.
type ByNamespace struct {
	Namespace string
}

func (s ByNamespace) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("namespace = ?", s.Namespace)
}

// ForUpdate takes a row lock for the rest of the transaction.
type ForUpdate struct{}

func (s ForUpdate) Apply(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
