package client

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"libraryconnect.chat/internal/model"
)

var (
	ErrEmptyMessage  = errors.New("message is empty")
	ErrEntryNotFound = errors.New("no such pending message")
)

// ThreadAPI is the part of Client a Thread needs.
type ThreadAPI interface {
	History(ctx context.Context, partnerID int64, since *time.Time) (*model.History, error)
	Send(ctx context.Context, recipientID int64, content, clientMsgID string) (*model.MessageWithUsers, error)
}

// Entry is one rendered line of a thread. Optimistic entries carry a TempID, derived
// from their ClientMsgID, until the server copy with the same ClientMsgID replaces them.
type Entry struct {
	model.MessageWithUsers
	TempID  string
	Pending bool
	Failed  bool
	Err     error
}

// Key identifies the entry within its thread.
func (e Entry) Key() string {
	if e.TempID != "" {
		return e.TempID
	}
	return strconv.FormatInt(e.ID, 10)
}

// Thread is the local state of one open conversation.
type Thread struct {
	api       ThreadAPI
	self      model.UserSummary
	partnerID int64
	now       func() time.Time
	newID     func() string

	mu       sync.Mutex
	partner  model.PublicProfile
	messages []model.MessageWithUsers
	pending  []*Entry
	version  uint64
}

// NewThread returns an empty thread between self and partnerID. Call Load to fill it.
func NewThread(api ThreadAPI, self model.UserSummary, partnerID int64) *Thread {
	return &Thread{
		api:       api,
		self:      self,
		partnerID: partnerID,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (t *Thread) PartnerID() int64 { return t.partnerID }

// Load fetches the whole thread and the partner profile, discarding nothing pending.
func (t *Thread) Load(ctx context.Context) error {
	_, err := t.Poll(ctx)
	return err
}

// Poll re-fetches the full history. Local state is replaced only when the fetched list
// differs from what is held, or when it confirms a pending entry. Reports whether
// anything visible changed.
func (t *Thread) Poll(ctx context.Context) (bool, error) {
	h, err := t.api.History(ctx, t.partnerID, nil)
	if err != nil {
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	changed := false
	if h.Recipient != t.partner {
		t.partner = h.Recipient
		changed = true
	}
	if !sameMessages(t.messages, h.Messages) {
		t.messages = h.Messages
		changed = true
	}
	if t.confirmLocked(h.Messages) {
		changed = true
	}
	if changed {
		t.version++
	}
	return changed, nil
}

// Stage appends an optimistic entry and returns it. Deliver sends it.
func (t *Thread) Stage(content string) (Entry, error) {
	if strings.TrimSpace(content) == "" {
		return Entry{}, ErrEmptyMessage
	}

	now := t.now()
	clientMsgID := t.newID()
	e := &Entry{
		MessageWithUsers: model.MessageWithUsers{
			Message: model.Message{
				ClientMsgID: clientMsgID,
				SenderID:    t.self.ID,
				RecipientID: t.partnerID,
				Content:     content,
				CreatedAt:   now,
				UpdatedAt:   now,
			},
			Sender: t.self,
		},
		TempID:  "temp-" + clientMsgID,
		Pending: true,
	}

	t.mu.Lock()
	e.Recipient = model.UserSummary{ID: t.partner.ID, Name: t.partner.Name, Avatar: t.partner.Avatar}
	if e.Recipient.ID == 0 {
		e.Recipient.ID = t.partnerID
	}
	t.pending = append(t.pending, e)
	t.version++
	out := *e
	t.mu.Unlock()
	return out, nil
}

// Deliver sends a staged or failed entry. On success the server copy takes its place;
// on failure the entry is kept and marked Failed until retried or discarded.
func (t *Thread) Deliver(ctx context.Context, tempID string) error {
	t.mu.Lock()
	e := t.findLocked(tempID)
	if e == nil {
		t.mu.Unlock()
		return ErrEntryNotFound
	}
	e.Pending, e.Failed, e.Err = true, false, nil
	content, clientMsgID := e.Content, e.ClientMsgID
	t.version++
	t.mu.Unlock()

	msg, err := t.api.Send(ctx, t.partnerID, content, clientMsgID)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.version++
	if err != nil {
		if e := t.findLocked(tempID); e != nil {
			e.Pending, e.Failed, e.Err = false, true, err
		}
		return err
	}
	t.insertLocked(*msg)
	t.confirmLocked([]model.MessageWithUsers{*msg})
	return nil
}

// Send stages content and delivers it.
func (t *Thread) Send(ctx context.Context, content string) (Entry, error) {
	e, err := t.Stage(content)
	if err != nil {
		return Entry{}, err
	}
	return e, t.Deliver(ctx, e.TempID)
}

// Retry resends a failed entry with its original correlation id.
func (t *Thread) Retry(ctx context.Context, tempID string) error {
	t.mu.Lock()
	e := t.findLocked(tempID)
	failed := e != nil && e.Failed
	t.mu.Unlock()
	if !failed {
		return ErrEntryNotFound
	}
	return t.Deliver(ctx, tempID)
}

// Discard drops a failed entry.
func (t *Thread) Discard(tempID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.pending {
		if e.TempID == tempID && e.Failed {
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			t.version++
			return true
		}
	}
	return false
}

// Entries is a snapshot: server messages oldest first, then unconfirmed local ones.
func (t *Thread) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, 0, len(t.messages)+len(t.pending))
	for _, m := range t.messages {
		out = append(out, Entry{MessageWithUsers: m})
	}
	for _, e := range t.pending {
		out = append(out, *e)
	}
	return out
}

// LastFailed returns the most recent failed entry, if any.
func (t *Thread) LastFailed() (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.pending) - 1; i >= 0; i-- {
		if t.pending[i].Failed {
			return *t.pending[i], true
		}
	}
	return Entry{}, false
}

func (t *Thread) Partner() model.PublicProfile {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.partner
}

// Version increases whenever Entries would return something different.
func (t *Thread) Version() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.version
}

func (t *Thread) findLocked(tempID string) *Entry {
	for _, e := range t.pending {
		if e.TempID == tempID {
			return e
		}
	}
	return nil
}

// confirmLocked drops pending entries whose correlation id appears in msgs.
func (t *Thread) confirmLocked(msgs []model.MessageWithUsers) bool {
	if len(t.pending) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if m.ClientMsgID != "" {
			seen[m.ClientMsgID] = struct{}{}
		}
	}
	kept := t.pending[:0]
	for _, e := range t.pending {
		if _, ok := seen[e.ClientMsgID]; ok {
			continue
		}
		kept = append(kept, e)
	}
	removed := len(kept) != len(t.pending)
	t.pending = kept
	return removed
}

func (t *Thread) insertLocked(msg model.MessageWithUsers) {
	for _, m := range t.messages {
		if m.ID == msg.ID {
			return
		}
	}
	msgs := append(append([]model.MessageWithUsers(nil), t.messages...), msg)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Before(&msgs[j].Message) })
	t.messages = msgs
}

// sameMessages compares the fields a poll can change.
func sameMessages(a, b []model.MessageWithUsers) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.ID != y.ID || x.ClientMsgID != y.ClientMsgID || x.Content != y.Content ||
			x.Read != y.Read || !x.CreatedAt.Equal(y.CreatedAt) {
			return false
		}
	}
	return true
}
