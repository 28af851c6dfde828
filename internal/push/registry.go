package push

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Client is one live connection of a user.
type Client interface {
	ID() string
	UserID() int64
	// Enqueue must not block; it reports false when the client cannot keep up.
	Enqueue(payload []byte) bool
	Close()
}

// Registry tracks which users are connected to this process.
type Registry struct {
	mu     sync.RWMutex
	users  map[int64]map[string]Client
	logger *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		users:  make(map[int64]map[string]Client),
		logger: logger,
	}
}

// Register adds c under its user.
func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[c.UserID()]
	if !ok {
		conns = make(map[string]Client)
		r.users[c.UserID()] = conns
	}
	conns[c.ID()] = c
}

// Unregister removes c. Unknown clients are ignored.
func (r *Registry) Unregister(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[c.UserID()]
	if !ok {
		return
	}
	delete(conns, c.ID())
	if len(conns) == 0 {
		delete(r.users, c.UserID())
	}
}

// Online reports how many connections userID has open here.
func (r *Registry) Online(userID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID])
}

// Count is the total number of connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, conns := range r.users {
		n += len(conns)
	}
	return n
}

// Deliver sends payload to every connection of userID. Clients whose buffer is full
// are dropped so that one slow reader never holds up the rest.
func (r *Registry) Deliver(userID int64, payload []byte) int {
	r.mu.RLock()
	targets := make([]Client, 0, len(r.users[userID]))
	for _, c := range r.users[userID] {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.Enqueue(payload) {
			delivered++
			continue
		}
		r.logger.Warn("dropping slow push client", "user_id", userID, "conn_id", c.ID())
		r.Unregister(c)
		c.Close()
	}
	return delivered
}

// Dispatch encodes e once and delivers it to each of its targets.
func (r *Registry) Dispatch(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		r.logger.Error("encode push event failed", "type", e.Type, "error", err)
		return
	}
	seen := make(map[int64]struct{}, 2)
	for _, uid := range e.Targets() {
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}
		r.Deliver(uid, payload)
	}
}

// CloseAll disconnects everyone, used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.users
	r.users = make(map[int64]map[string]Client)
	r.mu.Unlock()

	for _, conns := range all {
		for _, c := range conns {
			c.Close()
		}
	}
}
