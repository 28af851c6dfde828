package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraryconnect.chat/internal/model"
	"libraryconnect.chat/internal/repository"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func msg(id, from, to int64, content string, offset time.Duration) model.Message {
	return model.Message{
		ID:          id,
		SenderID:    from,
		RecipientID: to,
		Content:     content,
		CreatedAt:   base.Add(offset),
		UpdatedAt:   base.Add(offset),
	}
}

func seed(t *testing.T, s *MessageStore, messages ...model.Message) {
	t.Helper()
	for i := range messages {
		require.NoError(t, s.Create(context.Background(), &messages[i]))
	}
}

func TestUserStore(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &model.User{ID: 1, Name: "alice", Email: "Alice@Example.com"}))
	assert.ErrorIs(t, s.Create(ctx, &model.User{ID: 2, Email: "alice@example.com"}), repository.ErrEmailExists)

	u, err := s.GetByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)

	u.Name = "mutated"
	again, _ := s.GetByID(ctx, 1)
	assert.Equal(t, "alice", again.Name, "returned users are copies")

	_, err = s.GetByID(ctx, 99)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	found, _ := s.GetByIDs(ctx, []int64{1, 99})
	assert.Len(t, found, 1)

	s.Delete(ctx, 1)
	_, err = s.GetByID(ctx, 1)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
	require.NoError(t, s.Create(ctx, &model.User{ID: 3, Email: "alice@example.com"}), "email is free again")
}

func TestMessageStore_ListBetween(t *testing.T) {
	s := NewMessageStore()
	ctx := context.Background()
	seed(t, s,
		msg(3, 2, 1, "third", 2*time.Second),
		msg(1, 1, 2, "first", 0),
		msg(2, 2, 1, "second", time.Second),
		msg(4, 1, 3, "other pair", 500*time.Millisecond),
		msg(6, 1, 2, "tie b", 3*time.Second),
		msg(5, 2, 1, "tie a", 3*time.Second),
	)

	ab, err := s.ListBetween(ctx, 1, 2, nil)
	require.NoError(t, err)
	ba, err := s.ListBetween(ctx, 2, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, ab, ba, "direction-symmetric")

	var order []int64
	for _, m := range ab {
		order = append(order, m.ID)
	}
	assert.Equal(t, []int64{1, 2, 3, 5, 6}, order, "created_at then id")

	since := base.Add(time.Second)
	newer, err := s.ListBetween(ctx, 1, 2, &since)
	require.NoError(t, err)
	require.Len(t, newer, 3)
	assert.Equal(t, int64(3), newer[0].ID, "since is exclusive")

	empty, err := s.ListBetween(ctx, 7, 8, nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestMessageStore_UnreadAndMarkRead(t *testing.T) {
	s := NewMessageStore()
	ctx := context.Background()
	seed(t, s,
		msg(1, 2, 1, "a", 0),
		msg(2, 2, 1, "b", time.Second),
		msg(3, 3, 1, "c", 2*time.Second),
		msg(4, 1, 2, "d", 3*time.Second),
	)

	n, _ := s.CountUnread(ctx, 1)
	assert.Equal(t, int64(3), n)

	updated, err := s.MarkRead(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	updated, err = s.MarkRead(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated, "idempotent")

	n, _ = s.CountUnread(ctx, 1)
	assert.Equal(t, int64(1), n)
	n, _ = s.CountUnread(ctx, 2)
	assert.Equal(t, int64(1), n, "own sent messages are untouched")
}

func TestAggregateConversations(t *testing.T) {
	messages := []model.Message{
		msg(1, 1, 2, "hello two", 0),
		msg(2, 2, 1, "reply from two", time.Second),
		msg(3, 3, 1, "from three", 5*time.Second),
		msg(4, 4, 5, "not mine", 10*time.Second),
		msg(5, 1, 6, "to six", 5*time.Second),
	}
	messages[1].Read = true

	rows := AggregateConversations(1, messages)
	require.Len(t, rows, 3)

	// 3 and 6 share a timestamp, partner id breaks the tie
	assert.Equal(t, int64(3), rows[0].PartnerID)
	assert.Equal(t, int64(6), rows[1].PartnerID)
	assert.Equal(t, int64(2), rows[2].PartnerID)

	assert.Equal(t, "reply from two", rows[2].LastMessage.Content)
	assert.Equal(t, int64(0), rows[2].UnreadCount)
	assert.Equal(t, int64(1), rows[0].UnreadCount)
	assert.Equal(t, int64(0), rows[1].UnreadCount, "messages the user sent never count")

	assert.Empty(t, AggregateConversations(42, messages))
}

func TestAggregateConversations_InputOrderDoesNotMatter(t *testing.T) {
	forward := []model.Message{
		msg(1, 1, 2, "old", 0),
		msg(2, 2, 1, "new", time.Minute),
	}
	backward := []model.Message{forward[1], forward[0]}

	assert.Equal(t, AggregateConversations(1, forward), AggregateConversations(1, backward))
	assert.Equal(t, "new", AggregateConversations(1, backward)[0].LastMessage.Content)
}

func TestMessageStore_ConcurrentAccess(t *testing.T) {
	s := NewMessageStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			m := msg(int64(i+1), 2, 1, "x", time.Duration(i)*time.Millisecond)
			_ = s.Create(ctx, &m)
		}(i)
		go func() {
			defer wg.Done()
			_, _ = s.MarkRead(ctx, 1, 2)
			_, _ = s.ListConversations(ctx, 1)
		}()
	}
	wg.Wait()

	all, _ := s.ListBetween(ctx, 1, 2, nil)
	assert.Len(t, all, 20)
}

func TestSessionStore(t *testing.T) {
	s := NewSessionStore()
	ctx := context.Background()
	now := base
	s.now = func() time.Time { return now }

	info := &repository.SessionInfo{UserID: 1, DeviceID: "d", Platform: "web"}
	require.NoError(t, s.Save(ctx, info, "t1", time.Minute))

	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.UserID)

	require.NoError(t, s.Save(ctx, info, "t2", time.Minute))
	got, _ = s.Get(ctx, "t1")
	assert.Nil(t, got, "replaced on relogin")

	now = now.Add(2 * time.Minute)
	got, _ = s.Get(ctx, "t2")
	assert.Nil(t, got, "expired")

	require.NoError(t, s.Save(ctx, info, "t3", time.Minute))
	require.NoError(t, s.Delete(ctx, 1, "web", "t3"))
	got, _ = s.Get(ctx, "t3")
	assert.Nil(t, got)
}
