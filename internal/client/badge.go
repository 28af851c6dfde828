package client

import (
	"context"
	"sync"
)

// UnreadAPI is the part of Client a Badge needs.
type UnreadAPI interface {
	UnreadCount(ctx context.Context) (int64, error)
}

// Badge holds the caller's total unread count.
type Badge struct {
	api UnreadAPI

	mu    sync.Mutex
	count int64
}

// NewBadge returns a badge that reads zero until its first poll.
func NewBadge(api UnreadAPI) *Badge {
	return &Badge{api: api}
}

// Poll refreshes the count and reports whether it changed.
func (b *Badge) Poll(ctx context.Context) (bool, error) {
	n, err := b.api.UnreadCount(ctx)
	if err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	changed := n != b.count
	b.count = n
	return changed, nil
}

// Count returns the last polled unread total.
func (b *Badge) Count() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
