package websocket

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type stubConn struct {
	id, user string
	mu       sync.Mutex
	closed   bool
}

func (c *stubConn) ID() string              { return c.id }
func (c *stubConn) UserID() string          { return c.user }
func (c *stubConn) Send(frame []byte) error { return nil }
func (c *stubConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

type recordingPresence struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPresence) SetOnline(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "online:"+userID)
	return nil
}

func (p *recordingPresence) SetOffline(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "offline:"+userID)
	return nil
}

func TestHubFirstAndLastConnection(t *testing.T) {
	presence := &recordingPresence{}
	h := NewHub(presence, nil)
	c1 := &stubConn{id: "1", user: "u"}
	c2 := &stubConn{id: "2", user: "u"}

	if !h.Register("u", c1) {
		t.Fatal("first register should report first")
	}
	if h.Register("u", c2) {
		t.Fatal("second register should not report first")
	}
	if got := len(h.ConnectionsFor("u")); got != 2 {
		t.Fatalf("ConnectionsFor = %d, want 2", got)
	}
	if h.Unregister("u", c1) {
		t.Fatal("removing one of two should not report last")
	}
	if !h.Unregister("u", c2) {
		t.Fatal("removing the final connection should report last")
	}
	if h.Unregister("u", c2) {
		t.Fatal("unknown connection should be a no-op")
	}
	if h.UserCount() != 0 || h.Count() != 0 {
		t.Fatalf("hub not empty: users=%d conns=%d", h.UserCount(), h.Count())
	}

	want := []string{"online:u", "offline:u"}
	if fmt.Sprint(presence.events) != fmt.Sprint(want) {
		t.Fatalf("presence events = %v, want %v", presence.events, want)
	}
}

func TestHubUnregisterRequiresSameConnection(t *testing.T) {
	h := NewHub(nil, nil)
	c := &stubConn{id: "1", user: "u"}
	impostor := &stubConn{id: "1", user: "u"}
	h.Register("u", c)

	if h.Unregister("u", impostor) {
		t.Fatal("a different connection with the same id must not be removed")
	}
	if h.Count() != 1 {
		t.Fatalf("Count = %d, want 1", h.Count())
	}
}

func TestHubConcurrentRegistration(t *testing.T) {
	h := NewHub(nil, nil)
	const n = 50

	var wg sync.WaitGroup
	conns := make([]*stubConn, n)
	for i := range conns {
		conns[i] = &stubConn{id: fmt.Sprintf("c%d", i), user: fmt.Sprintf("u%d", i%5)}
	}
	for _, c := range conns {
		wg.Add(1)
		go func(c *stubConn) {
			defer wg.Done()
			h.Register(c.user, c)
			_ = h.ConnectionsFor(c.user)
		}(c)
	}
	wg.Wait()

	if h.Count() != n || h.UserCount() != 5 {
		t.Fatalf("Count=%d UserCount=%d, want %d and 5", h.Count(), h.UserCount(), n)
	}

	for _, c := range conns {
		wg.Add(1)
		go func(c *stubConn) {
			defer wg.Done()
			h.Unregister(c.user, c)
		}(c)
	}
	wg.Wait()
	if h.Count() != 0 {
		t.Fatalf("Count = %d after unregistering all", h.Count())
	}
}

func TestHubCloseAll(t *testing.T) {
	h := NewHub(nil, nil)
	a := &stubConn{id: "a", user: "u1"}
	b := &stubConn{id: "b", user: "u2"}
	h.Register("u1", a)
	h.Register("u2", b)

	h.CloseAll()
	if !a.closed || !b.closed {
		t.Fatal("CloseAll left a connection open")
	}
}

// gatedPresence holds the first SetOnline until release is closed.
type gatedPresence struct {
	recordingPresence
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (p *gatedPresence) SetOnline(ctx context.Context, userID string) error {
	p.once.Do(func() {
		close(p.entered)
		<-p.release
	})
	return p.recordingPresence.SetOnline(ctx, userID)
}

func TestHubPresenceSettlesOnLatestState(t *testing.T) {
	presence := &gatedPresence{entered: make(chan struct{}), release: make(chan struct{})}
	h := NewHub(presence, nil)
	c := &stubConn{id: "1", user: "u"}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.Register("u", c)
	}()
	<-presence.entered

	// The user disconnects while the online write is still in flight.
	go func() {
		defer wg.Done()
		h.Unregister("u", c)
	}()
	deadline := time.Now().Add(5 * time.Second)
	for h.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("unregister did not run")
		}
		time.Sleep(time.Millisecond)
	}
	close(presence.release)
	wg.Wait()

	presence.mu.Lock()
	defer presence.mu.Unlock()
	if n := len(presence.events); n == 0 || presence.events[n-1] != "offline:u" {
		t.Fatalf("presence events = %v, want last offline:u", presence.events)
	}
}
