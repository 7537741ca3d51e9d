package repository

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"convo-relay/internal/domain/conversation"
	"convo-relay/internal/domain/message"
	"convo-relay/internal/domain/user"
	relay_errors "convo-relay/pkg/errors"
)

type localKey struct {
	senderID string
	localID  string
}

type deliveryKey struct {
	messageID string
	userID    string
}

type memoryState struct {
	users        map[string]user.User
	convos       map[string]conversation.Convo
	participants map[string]map[string]conversation.Participant
	messages     map[string]message.Message
	byLocalID    map[localKey]string
	deliveries   map[deliveryKey]message.DeliveryState
}

func newMemoryState() *memoryState {
	return &memoryState{
		users:        make(map[string]user.User),
		convos:       make(map[string]conversation.Convo),
		participants: make(map[string]map[string]conversation.Participant),
		messages:     make(map[string]message.Message),
		byLocalID:    make(map[localKey]string),
		deliveries:   make(map[deliveryKey]message.DeliveryState),
	}
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		users:        maps.Clone(s.users),
		convos:       maps.Clone(s.convos),
		participants: make(map[string]map[string]conversation.Participant, len(s.participants)),
		messages:     maps.Clone(s.messages),
		byLocalID:    maps.Clone(s.byLocalID),
		deliveries:   maps.Clone(s.deliveries),
	}
	for convoID, members := range s.participants {
		c.participants[convoID] = maps.Clone(members)
	}
	return c
}

type MemoryOption func(*MemoryStore)

// WithAutoProvisionedUsers makes GetUser treat unknown ids as active users.
// Development only.
func WithAutoProvisionedUsers() MemoryOption {
	return func(s *MemoryStore) {
		s.autoProvision = true
	}
}

// MemoryStore is a process-local StateStore. Transactions are serialized
// and run against a copy of the state that replaces it on commit, so every
// event costs a full copy. For development and tests, not for load.
type MemoryStore struct {
	mu            sync.RWMutex
	state         *memoryState
	autoProvision bool
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{state: newMemoryState()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PutUser seeds or replaces a user row.
func (s *MemoryStore) PutUser(u user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.users[u.ID] = u
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx StateTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	if err := fn(&memoryTx{state: staged}); err != nil {
		return err
	}
	s.state = staged
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) ListParticipantIDs(ctx context.Context, convoID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return participantIDs(s.state, convoID), nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.state.users[id]; ok {
		return u, nil
	}
	if s.autoProvision && id != "" {
		return user.User{ID: id, DisplayName: id, IsActive: true}, nil
	}
	return user.User{}, relay_errors.ErrNotFound
}

func (s *MemoryStore) ListConvosSince(ctx context.Context, userID string, since time.Time) ([]conversation.Convo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var convos []conversation.Convo
	for convoID, members := range s.state.participants {
		if _, ok := members[userID]; !ok {
			continue
		}
		c := s.state.convos[convoID]
		if !c.UpdatedAt.Before(since) {
			convos = append(convos, c)
		}
	}
	sort.Slice(convos, func(i, j int) bool {
		if !convos[i].UpdatedAt.Equal(convos[j].UpdatedAt) {
			return convos[i].UpdatedAt.After(convos[j].UpdatedAt)
		}
		return convos[i].ID < convos[j].ID
	})
	return convos, nil
}

func (s *MemoryStore) ListMessagesSince(ctx context.Context, userID string, since time.Time) ([]message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var messages []message.Message
	for _, m := range s.state.messages {
		if _, ok := s.state.participants[m.ConvoID][userID]; !ok {
			continue
		}
		if !m.UpdatedAt.Before(since) {
			messages = append(messages, m)
		}
	}
	sort.Slice(messages, func(i, j int) bool {
		if !messages[i].UpdatedAt.Equal(messages[j].UpdatedAt) {
			return messages[i].UpdatedAt.After(messages[j].UpdatedAt)
		}
		return messages[i].ID < messages[j].ID
	})
	return messages, nil
}

func participantIDs(state *memoryState, convoID string) []string {
	members := state.participants[convoID]
	list := make([]conversation.Participant, 0, len(members))
	for _, p := range members {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].JoinedAt.Equal(list[j].JoinedAt) {
			return list[i].JoinedAt.Before(list[j].JoinedAt)
		}
		return list[i].UserID < list[j].UserID
	})
	ids := make([]string, len(list))
	for i, p := range list {
		ids[i] = p.UserID
	}
	return ids
}

type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) GetConvo(ctx context.Context, id string) (conversation.Convo, error) {
	c, ok := t.state.convos[id]
	if !ok {
		return conversation.Convo{}, relay_errors.ErrNotFound
	}
	return c, nil
}

func (t *memoryTx) InsertConvo(ctx context.Context, c conversation.Convo) (bool, error) {
	if _, ok := t.state.convos[c.ID]; ok {
		return false, nil
	}
	t.state.convos[c.ID] = c
	return true, nil
}

func (t *memoryTx) UpdateConvo(ctx context.Context, c conversation.Convo) error {
	if _, ok := t.state.convos[c.ID]; !ok {
		return relay_errors.ErrNotFound
	}
	t.state.convos[c.ID] = c
	return nil
}

func (t *memoryTx) GetParticipant(ctx context.Context, convoID, userID string) (conversation.Participant, error) {
	p, ok := t.state.participants[convoID][userID]
	if !ok {
		return conversation.Participant{}, relay_errors.ErrNotFound
	}
	return p, nil
}

func (t *memoryTx) InsertParticipant(ctx context.Context, p conversation.Participant) (bool, error) {
	if _, ok := t.state.convos[p.ConvoID]; !ok {
		return false, relay_errors.ErrNotFound
	}
	members := t.state.participants[p.ConvoID]
	if members == nil {
		members = make(map[string]conversation.Participant)
		t.state.participants[p.ConvoID] = members
	}
	if _, ok := members[p.UserID]; ok {
		return false, nil
	}
	members[p.UserID] = p
	return true, nil
}

func (t *memoryTx) UpdateParticipant(ctx context.Context, p conversation.Participant) error {
	members := t.state.participants[p.ConvoID]
	if _, ok := members[p.UserID]; !ok {
		return relay_errors.ErrNotFound
	}
	members[p.UserID] = p
	return nil
}

func (t *memoryTx) ListParticipantIDs(ctx context.Context, convoID string) ([]string, error) {
	return participantIDs(t.state, convoID), nil
}

func (t *memoryTx) GetMessage(ctx context.Context, id string) (message.Message, error) {
	m, ok := t.state.messages[id]
	if !ok {
		return message.Message{}, relay_errors.ErrNotFound
	}
	return m, nil
}

func (t *memoryTx) GetMessageByLocalID(ctx context.Context, senderID, localID string) (message.Message, error) {
	id, ok := t.state.byLocalID[localKey{senderID: senderID, localID: localID}]
	if !ok {
		return message.Message{}, relay_errors.ErrNotFound
	}
	return t.state.messages[id], nil
}

func (t *memoryTx) InsertMessage(ctx context.Context, m message.Message) (bool, error) {
	key := localKey{senderID: m.SenderID, localID: m.LocalID}
	if _, ok := t.state.byLocalID[key]; ok {
		return false, nil
	}
	if _, ok := t.state.messages[m.ID]; ok {
		return false, relay_errors.ErrAlreadyExists
	}
	if _, ok := t.state.convos[m.ConvoID]; !ok {
		return false, relay_errors.ErrNotFound
	}
	t.state.messages[m.ID] = m
	t.state.byLocalID[key] = m.ID
	return true, nil
}

func (t *memoryTx) UpdateMessage(ctx context.Context, m message.Message) error {
	if _, ok := t.state.messages[m.ID]; !ok {
		return relay_errors.ErrNotFound
	}
	t.state.messages[m.ID] = m
	return nil
}

func (t *memoryTx) GetDelivery(ctx context.Context, messageID, userID string) (message.DeliveryState, error) {
	d, ok := t.state.deliveries[deliveryKey{messageID: messageID, userID: userID}]
	if !ok {
		return message.DeliveryState{}, relay_errors.ErrNotFound
	}
	return d, nil
}

func (t *memoryTx) UpsertDelivery(ctx context.Context, d message.DeliveryState) error {
	if _, ok := t.state.messages[d.MessageID]; !ok {
		return relay_errors.ErrNotFound
	}
	t.state.deliveries[deliveryKey{messageID: d.MessageID, userID: d.UserID}] = d
	return nil
}
