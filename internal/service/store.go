package service

import (
	"context"
	"time"

	"libraryconnect.chat/internal/model"
	"libraryconnect.chat/internal/repository"
	"libraryconnect.chat/pkg/snowflake"
)

// UserStore is satisfied by repository.UserRepository and memory.UserStore.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error)
}

// MessageStore is satisfied by repository.MessageRepository and memory.MessageStore.
type MessageStore interface {
	Create(ctx context.Context, msg *model.Message) error
	ListBetween(ctx context.Context, a, b int64, since *time.Time) ([]model.Message, error)
	MarkRead(ctx context.Context, readerID, partnerID int64) (int64, error)
	CountUnread(ctx context.Context, userID int64) (int64, error)
	ListConversations(ctx context.Context, userID int64) ([]model.ConversationRow, error)
}

// SessionStore is satisfied by repository.TokenRepository and memory.SessionStore.
type SessionStore interface {
	Save(ctx context.Context, info *repository.SessionInfo, accessToken string, ttl time.Duration) error
	Get(ctx context.Context, accessToken string) (*repository.SessionInfo, error)
	Delete(ctx context.Context, userID int64, platform, accessToken string) error
}

// Notifier is told about chat writes so that connected clients can refresh early.
// Delivery is best effort; polling stays authoritative.
type Notifier interface {
	MessageCreated(ctx context.Context, msg *model.MessageWithUsers) error
	MessagesRead(ctx context.Context, readerID, partnerID, updated int64) error
}

type nopNotifier struct{}

func (nopNotifier) MessageCreated(context.Context, *model.MessageWithUsers) error { return nil }
func (nopNotifier) MessagesRead(context.Context, int64, int64, int64) error { return nil }

// IDGenerator is satisfied by *snowflake.Node.
type IDGenerator interface {
	Generate() snowflake.ID
}
