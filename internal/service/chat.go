package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"libraryconnect.chat/internal/model"
	"libraryconnect.chat/internal/repository"
	appErrors "libraryconnect.chat/pkg/errors"
)

const maxClientMsgIDLen = 64

// SendMessageRequest is the body of POST /api/chat.
type SendMessageRequest struct {
	Recipient   string `json:"recipient" example:"7300000000000000001"`
	Content     string `json:"content" example:"Is the book still available?"`
	ClientMsgID string `json:"clientMsgId,omitempty" example:"3f2b8c1e-9a4d-4c59-b3a1-1f0e6d2c7a55"`
}

// ChatService implements sending, reading and aggregating direct messages.
type ChatService struct {
	users    UserStore
	messages MessageStore
	ids      IDGenerator
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewChatService wires the chat service. notifier and logger may be nil.
func NewChatService(users UserStore, messages MessageStore, ids IDGenerator, notifier Notifier, logger *slog.Logger) *ChatService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{
		users:    users,
		messages: messages,
		ids:      ids,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// SendMessage stores a new unread message from senderID and returns it with both
// participants expanded.
func (s *ChatService) SendMessage(ctx context.Context, senderID int64, req *SendMessageRequest) (*model.MessageWithUsers, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, appErrors.ErrContentRequired
	}
	recipientRaw := strings.TrimSpace(req.Recipient)
	if recipientRaw == "" {
		return nil, appErrors.ErrRecipientRequired
	}
	recipientID, err := strconv.ParseInt(recipientRaw, 10, 64)
	if err != nil || recipientID <= 0 {
		return nil, appErrors.ErrInvalidParams.WithMessage("recipient must be a user id")
	}
	if recipientID == senderID {
		return nil, appErrors.ErrCannotMessageSelf
	}
	if len(req.ClientMsgID) > maxClientMsgIDLen {
		return nil, appErrors.ErrInvalidParams.WithMessage("clientMsgId is too long")
	}

	participants, err := s.users.GetByIDs(ctx, []int64{senderID, recipientID})
	if err != nil {
		return nil, appErrors.ErrDBError.Wrap(err)
	}
	recipient, ok := participants[recipientID]
	if !ok {
		return nil, appErrors.ErrRecipientNotFound
	}
	sender, ok := participants[senderID]
	if !ok {
		return nil, appErrors.ErrUserNotFound
	}

	// postgres keeps microseconds; truncate so the response matches what later reads return
	now := s.now().UTC().Truncate(time.Microsecond)
	msg := model.Message{
		ID:          s.ids.Generate().Int64(),
		ClientMsgID: req.ClientMsgID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     req.Content,
		Read:        false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.messages.Create(ctx, &msg); err != nil {
		return nil, appErrors.ErrDBError.Wrap(err)
	}

	out := &model.MessageWithUsers{
		Message:   msg,
		Sender:    sender.Summary(),
		Recipient: recipient.Summary(),
	}

	if err := s.notifier.MessageCreated(ctx, out); err != nil {
		s.logger.Warn("notify message created failed", "message_id", msg.ID, "error", err)
	}
	return out, nil
}

// History returns the full exchange between viewerID and partnerID, oldest first.
//
// Opening a conversation is a write: every unread message the partner sent to the
// viewer is marked read before the list is built, so the returned messages already
// carry read=true. A non-nil since keeps only messages created strictly after it.
func (s *ChatService) History(ctx context.Context, viewerID, partnerID int64, since *time.Time) (*model.History, error) {
	partner, err := s.users.GetByID(ctx, partnerID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, appErrors.ErrPartnerNotFound
		}
		return nil, appErrors.ErrDBError.Wrap(err)
	}
	viewer, err := s.users.GetByID(ctx, viewerID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, appErrors.ErrUserNotFound
		}
		return nil, appErrors.ErrDBError.Wrap(err)
	}

	if _, err := s.markRead(ctx, viewerID, partnerID); err != nil {
		return nil, err
	}

	messages, err := s.messages.ListBetween(ctx, viewerID, partnerID, since)
	if err != nil {
		return nil, appErrors.ErrDBError.Wrap(err)
	}

	summaries := map[int64]model.UserSummary{
		viewer.ID:  viewer.Summary(),
		partner.ID: partner.Summary(),
	}
	out := make([]model.MessageWithUsers, 0, len(messages))
	for _, m := range messages {
		out = append(out, model.MessageWithUsers{
			Message:   m,
			Sender:    summaries[m.SenderID],
			Recipient: summaries[m.RecipientID],
		})
	}

	return &model.History{
		Recipient: partner.Public(),
		Messages:  out,
	}, nil
}

// Conversations lists one entry per chat partner, most recent first. Partners whose
// account no longer exists are left out.
func (s *ChatService) Conversations(ctx context.Context, userID int64) ([]model.Conversation, error) {
	rows, err := s.messages.ListConversations(ctx, userID)
	if err != nil {
		return nil, appErrors.ErrDBError.Wrap(err)
	}

	partnerIDs := make([]int64, 0, len(rows))
	for _, row := range rows {
		partnerIDs = append(partnerIDs, row.PartnerID)
	}
	partners, err := s.users.GetByIDs(ctx, partnerIDs)
	if err != nil {
		return nil, appErrors.ErrDBError.Wrap(err)
	}

	out := make([]model.Conversation, 0, len(rows))
	for _, row := range rows {
		partner, ok := partners[row.PartnerID]
		if !ok {
			s.logger.Debug("conversation partner missing", "user_id", userID, "partner_id", row.PartnerID)
			continue
		}
		out = append(out, model.Conversation{
			User:        partner.Summary(),
			LastMessage: row.LastMessage.Content,
			LastSender:  row.LastMessage.SenderID,
			UpdatedAt:   row.LastMessage.CreatedAt,
			UnreadCount: row.UnreadCount,
		})
	}
	return out, nil
}

// UnreadCount is the number of messages addressed to userID that are still unread.
func (s *ChatService) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	n, err := s.messages.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.ErrDBError.Wrap(err)
	}
	return n, nil
}

// MarkRead marks everything partnerID sent to userID as read. Safe to repeat.
func (s *ChatService) MarkRead(ctx context.Context, userID, partnerID int64) (int64, error) {
	return s.markRead(ctx, userID, partnerID)
}

func (s *ChatService) markRead(ctx context.Context, readerID, partnerID int64) (int64, error) {
	updated, err := s.messages.MarkRead(ctx, readerID, partnerID)
	if err != nil {
		return 0, appErrors.ErrDBError.Wrap(err)
	}
	if updated > 0 {
		if err := s.notifier.MessagesRead(ctx, readerID, partnerID, updated); err != nil {
			s.logger.Warn("notify messages read failed", "reader_id", readerID, "partner_id", partnerID, "error", err)
		}
	}
	return updated, nil
}
