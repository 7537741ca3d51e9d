package websocket

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"convo-relay/internal/services"
)

// Presence is told when a user gains a first or loses a last connection.
type Presence interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
}

const presenceTimeout = 2 * time.Second

// Hub is the process-wide registry of live connections, keyed by user and
// then by connection id.
type Hub struct {
	mu       sync.RWMutex
	users    map[string]map[string]services.Connection
	presence Presence
	log      *EventLogger

	// presenceMu orders presence writes. Each write publishes the state read
	// under it, so the last write always matches the registry.
	presenceMu sync.Mutex
}

var _ services.Registry = (*Hub)(nil)

// NewHub creates a hub. presence may be nil.
func NewHub(presence Presence, log *EventLogger) *Hub {
	if log == nil {
		log = NewEventLogger(nil)
	}
	return &Hub{
		users:    make(map[string]map[string]services.Connection),
		presence: presence,
		log:      log,
	}
}

func (h *Hub) Register(userID string, c services.Connection) bool {
	h.mu.Lock()
	conns, ok := h.users[userID]
	if !ok {
		conns = make(map[string]services.Connection)
		h.users[userID] = conns
	}
	conns[c.ID()] = c
	first := len(conns) == 1
	h.mu.Unlock()

	if first {
		h.notify(userID, c.ID())
	}
	return first
}

func (h *Hub) Unregister(userID string, c services.Connection) bool {
	h.mu.Lock()
	conns, ok := h.users[userID]
	if !ok || conns[c.ID()] != c {
		h.mu.Unlock()
		return false
	}
	delete(conns, c.ID())
	last := len(conns) == 0
	if last {
		delete(h.users, userID)
	}
	h.mu.Unlock()

	if last {
		h.notify(userID, c.ID())
	}
	return last
}

func (h *Hub) ConnectionsFor(userID string) []services.Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := h.users[userID]
	out := make([]services.Connection, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, conns := range h.users {
		n += len(conns)
	}
	return n
}

// UserCount returns the number of users with at least one connection.
func (h *Hub) UserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}

// CloseAll closes every live connection. Their receive loops then exit and
// unregister themselves.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	var all []services.Connection
	for _, conns := range h.users {
		for _, c := range conns {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		_ = c.Close()
	}
}

func (h *Hub) notify(userID, clientID string) {
	if h.presence == nil {
		return
	}
	h.presenceMu.Lock()
	defer h.presenceMu.Unlock()

	h.mu.RLock()
	online := len(h.users[userID]) > 0
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()

	var err error
	if online {
		err = h.presence.SetOnline(ctx, userID)
	} else {
		err = h.presence.SetOffline(ctx, userID)
	}
	if err != nil {
		h.log.Warn("presence_update_failed", userID, clientID, zap.Bool("online", online), zap.Error(err))
	}
}
