package core

import (
	"context"
	"errors"

	"github.com/vkondrav/pigeon/internal/domain"
)

// ErrNotFound is returned by every store for a missing row.
var ErrNotFound = errors.New("not found")

// UserStore is the durable side of identity and presence. Presence
// writes are fire-and-forget for the coordinator: failures are logged,
// never retried.
type UserStore interface {
	GetUser(ctx context.Context, id domain.UserID) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) error
	UpdateUser(ctx context.Context, u *domain.User) error
	SetPresence(ctx context.Context, id domain.UserID, online bool) error
	ListUsers(ctx context.Context, except domain.UserID) ([]domain.User, error)
}

type ConversationStore interface {
	GetOrCreateConversation(ctx context.Context, a, b domain.UserID) (*domain.Conversation, error)
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	ListConversations(ctx context.Context, uid domain.UserID) ([]domain.Conversation, error)
	TouchConversation(ctx context.Context, id string, lastMessage domain.MessageID, unreadFor domain.UserID) error
	ResetUnread(ctx context.Context, id string, uid domain.UserID) error
}

type MessageStore interface {
	InsertMessage(ctx context.Context, m *domain.Message) error
	GetMessage(ctx context.Context, id domain.MessageID) (*domain.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
	UpdateMessageStatus(ctx context.Context, id domain.MessageID, status domain.MessageStatus) error
	UpdateMessagesStatus(ctx context.Context, ids []domain.MessageID, status domain.MessageStatus) error
	UpdateReactions(ctx context.Context, id domain.MessageID, reactions []domain.Reaction) error
	DeleteMessage(ctx context.Context, id domain.MessageID) error
}

type StatusStore interface {
	InsertStatus(ctx context.Context, s *domain.Status) error
	GetStatus(ctx context.Context, id string) (*domain.Status, error)
	ListActiveStatuses(ctx context.Context) ([]domain.Status, error)
	UpdateStatusViewers(ctx context.Context, id string, viewers []domain.UserID) error
	DeleteStatus(ctx context.Context, id string) error
}
