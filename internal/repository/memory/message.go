package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"libraryconnect.chat/internal/model"
)

// MessageStore keeps messages in insertion order behind a single lock.
type MessageStore struct {
	mu       sync.RWMutex
	messages []model.Message
	now      func() time.Time
}

// NewMessageStore returns an empty store.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make([]model.Message, 0, 64),
		now:      time.Now,
	}
}

func (s *MessageStore) Create(_ context.Context, msg *model.Message) error {
	s.mu.Lock()
	s.messages = append(s.messages, *msg)
	s.mu.Unlock()
	return nil
}

// ListBetween returns the pair's messages oldest first, newer than since when set.
func (s *MessageStore) ListBetween(_ context.Context, a, b int64, since *time.Time) ([]model.Message, error) {
	s.mu.RLock()
	out := make([]model.Message, 0)
	for _, m := range s.messages {
		if !between(&m, a, b) {
			continue
		}
		if since != nil && !m.CreatedAt.After(*since) {
			continue
		}
		out = append(out, m)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Before(&out[j]) })
	return out, nil
}

// MarkRead flips every unread message partnerID sent to readerID.
func (s *MessageStore) MarkRead(_ context.Context, readerID, partnerID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	var updated int64
	for i := range s.messages {
		m := &s.messages[i]
		if m.RecipientID == readerID && m.SenderID == partnerID && !m.Read {
			m.Read = true
			m.UpdatedAt = now
			updated++
		}
	}
	return updated, nil
}

func (s *MessageStore) CountUnread(_ context.Context, userID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, m := range s.messages {
		if m.RecipientID == userID && !m.Read {
			n++
		}
	}
	return n, nil
}

func (s *MessageStore) ListConversations(_ context.Context, userID int64) ([]model.ConversationRow, error) {
	s.mu.RLock()
	snapshot := make([]model.Message, len(s.messages))
	copy(snapshot, s.messages)
	s.mu.RUnlock()

	return AggregateConversations(userID, snapshot), nil
}

func between(m *model.Message, a, b int64) bool {
	return (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a)
}
