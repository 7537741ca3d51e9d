package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"convo-relay/internal/domain/user"
	"convo-relay/internal/repository"
)

type fakeConn struct {
	id     string
	user   string
	mu     sync.Mutex
	frames [][]byte
	fail   bool
	closed bool
}

func (c *fakeConn) ID() string     { return c.id }
func (c *fakeConn) UserID() string { return c.user }

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail || c.closed {
		return errors.New("broken pipe")
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

type frame struct {
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	AckLocalID *string         `json:"ack_local_id"`
	Error      string          `json:"error"`
	Code       string          `json:"code"`
}

func (c *fakeConn) received(t *testing.T) []frame {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]frame, len(c.frames))
	for i, raw := range c.frames {
		if err := json.Unmarshal(raw, &out[i]); err != nil {
			t.Fatalf("frame %d on %s is not JSON: %v", i, c.id, err)
		}
	}
	return out
}

func (c *fakeConn) last(t *testing.T) frame {
	t.Helper()
	frames := c.received(t)
	if len(frames) == 0 {
		t.Fatalf("connection %s received nothing", c.id)
	}
	return frames[len(frames)-1]
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

type fakeRegistry struct {
	mu    sync.Mutex
	conns map[string][]Connection
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{conns: make(map[string][]Connection)}
}

func (r *fakeRegistry) Register(userID string, c Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[userID] = append(r.conns[userID], c)
	return len(r.conns[userID]) == 1
}

func (r *fakeRegistry) Unregister(userID string, c Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.conns[userID]
	for i, existing := range list {
		if existing == c {
			list = append(list[:i:i], list[i+1:]...)
			if len(list) == 0 {
				delete(r.conns, userID)
				return true
			}
			r.conns[userID] = list
			return false
		}
	}
	return false
}

func (r *fakeRegistry) ConnectionsFor(userID string) []Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Connection(nil), r.conns[userID]...)
}

type harness struct {
	store    *repository.MemoryStore
	registry *fakeRegistry
	convos   *ConversationService
	messages *MessageService
	receipts *ReceiptService
	router   *EventRouter
	seq      int
}

func newHarness(t *testing.T, limiter RateLimiter) *harness {
	t.Helper()
	store := repository.NewMemoryStore()
	registry := newFakeRegistry()
	h := &harness{
		store:    store,
		registry: registry,
		convos:   NewConversationService(store),
		messages: NewMessageService(store),
		receipts: NewReceiptService(store),
	}
	h.router = NewEventRouter(h.convos, h.messages, h.receipts, NewBroadcastService(store, registry, nil), limiter, nil)
	return h
}

func (h *harness) connect(userID string) *fakeConn {
	h.seq++
	c := &fakeConn{id: fmt.Sprintf("%s-%d", userID, h.seq), user: userID}
	h.registry.Register(userID, c)
	return c
}

func (h *harness) send(t *testing.T, from *fakeConn, raw string) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.router.Handle(ctx, user.Identity{UserID: from.user}, from, []byte(raw))
}

// mustSend fails the test when the event is rejected.
func (h *harness) mustSend(t *testing.T, from *fakeConn, raw string) {
	t.Helper()
	if err := h.send(t, from, raw); err != nil {
		t.Fatalf("event %s rejected: %v", raw, err)
	}
}

func decodePayload[T any](t *testing.T, f frame) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(f.Payload, &v); err != nil {
		t.Fatalf("payload of %s: %v", f.Type, err)
	}
	return v
}

func identity(userID string) user.Identity {
	return user.Identity{UserID: userID}
}
