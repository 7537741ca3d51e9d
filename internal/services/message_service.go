package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"convo-relay/internal/domain/message"
	"convo-relay/internal/domain/user"
	"convo-relay/internal/events"
	"convo-relay/internal/repository"
	relay_errors "convo-relay/pkg/errors"
)

type MessageService struct {
	store repository.StateStore
	guard IdempotencyGuard
	now   func() time.Time
	newID func() string
}

func NewMessageService(store repository.StateStore) *MessageService {
	return &MessageService{
		store: store,
		now:   relay_errors.NowUTC,
		newID: uuid.NewString,
	}
}

// SendMessage stores a message once per (sender, local id). A resend
// returns the stored message without touching the convo.
func (s *MessageService) SendMessage(ctx context.Context, actor user.Identity, p events.SendMessagePayload) (Outcome, error) {
	if err := p.Validate(); err != nil {
		return Outcome{}, err
	}

	var msg message.Message
	err := s.store.WithTx(ctx, func(tx repository.StateTx) error {
		if _, err := requireMember(ctx, tx, p.ConvoID, actor.UserID); err != nil {
			return err
		}
		convo, err := tx.GetConvo(ctx, p.ConvoID)
		if err != nil {
			return err
		}

		now := s.now()
		m, created, err := s.guard.Claim(ctx, tx, message.Message{
			ID:        s.newID(),
			LocalID:   p.LocalID,
			ConvoID:   p.ConvoID,
			SenderID:  actor.UserID,
			Body:      message.Active{Content: *p.Content},
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return err
		}
		if created {
			convo.Bump(now)
			if err := tx.UpdateConvo(ctx, convo); err != nil {
				return err
			}
		}
		msg = m
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	ack := p.LocalID
	return Outcome{
		ConvoID: msg.ConvoID,
		Frame:   events.NewBroadcast(events.KindSendMessage, events.NewMessageEnvelope(msg), &ack),
	}, nil
}

func (s *MessageService) ownMessage(ctx context.Context, tx repository.StateTx, id, actorID string) (message.Message, error) {
	m, err := tx.GetMessage(ctx, id)
	if err != nil {
		if errors.Is(err, relay_errors.ErrNotFound) {
			return message.Message{}, fmt.Errorf("%w: message %s", relay_errors.ErrNotFound, id)
		}
		return message.Message{}, err
	}
	if m.SenderID != actorID {
		return message.Message{}, fmt.Errorf("%w: only the sender may change message %s", relay_errors.ErrForbidden, id)
	}
	return m, nil
}

// DeleteMessage soft-deletes: the row keeps its id, sender and timestamps.
func (s *MessageService) DeleteMessage(ctx context.Context, actor user.Identity, p events.DeleteMessagePayload) (Outcome, error) {
	if err := p.Validate(); err != nil {
		return Outcome{}, err
	}

	var msg message.Message
	err := s.store.WithTx(ctx, func(tx repository.StateTx) error {
		m, err := s.ownMessage(ctx, tx, p.ID, actor.UserID)
		if err != nil {
			return err
		}
		m.Delete()
		m.Touch(s.now())
		if err := tx.UpdateMessage(ctx, m); err != nil {
			return err
		}
		msg = m
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		ConvoID: msg.ConvoID,
		Frame:   events.NewBroadcast(events.KindDeleteMessage, events.DeletedMessage{ID: msg.ID, ConvoID: msg.ConvoID}, p.LocalID),
	}, nil
}

// UpdateMessage edits the content of an active message. On a deleted
// message only updated_at moves.
func (s *MessageService) UpdateMessage(ctx context.Context, actor user.Identity, p events.UpdateMessagePayload) (Outcome, error) {
	if err := p.Validate(); err != nil {
		return Outcome{}, err
	}

	var msg message.Message
	err := s.store.WithTx(ctx, func(tx repository.StateTx) error {
		m, err := s.ownMessage(ctx, tx, p.ID, actor.UserID)
		if err != nil {
			return err
		}
		if p.Content != nil {
			m.Edit(*p.Content)
		}
		m.Touch(s.now())
		if err := tx.UpdateMessage(ctx, m); err != nil {
			return err
		}
		msg = m
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	ack := msg.LocalID
	return Outcome{
		ConvoID: msg.ConvoID,
		Frame:   events.NewBroadcast(events.KindUpdateMessage, events.NewMessageEnvelope(msg), &ack),
	}, nil
}
