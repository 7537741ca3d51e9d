package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"convo-relay/internal/domain/message"
	"convo-relay/internal/domain/user"
	"convo-relay/internal/events"
	"convo-relay/internal/repository"
	relay_errors "convo-relay/pkg/errors"
)

type ReceiptService struct {
	store repository.StateStore
	now   func() time.Time
}

func NewReceiptService(store repository.StateStore) *ReceiptService {
	return &ReceiptService{store: store, now: relay_errors.NowUTC}
}

func (s *ReceiptService) Delivered(ctx context.Context, actor user.Identity, p events.ReceiptPayload) (Outcome, error) {
	return s.ack(ctx, actor, events.KindMessageDelivered, p)
}

// Seen also moves the actor's last_read_at.
func (s *ReceiptService) Seen(ctx context.Context, actor user.Identity, p events.ReceiptPayload) (Outcome, error) {
	return s.ack(ctx, actor, events.KindMessageSeen, p)
}

func (s *ReceiptService) ack(ctx context.Context, actor user.Identity, kind events.Kind, p events.ReceiptPayload) (Outcome, error) {
	if err := p.Validate(); err != nil {
		return Outcome{}, err
	}

	var at time.Time
	err := s.store.WithTx(ctx, func(tx repository.StateTx) error {
		participant, err := requireMember(ctx, tx, p.ConvoID, actor.UserID)
		if err != nil {
			return err
		}
		m, err := tx.GetMessage(ctx, p.ID)
		if err != nil && !errors.Is(err, relay_errors.ErrNotFound) {
			return err
		}
		if err != nil || m.ConvoID != p.ConvoID {
			return fmt.Errorf("%w: message %s in convo %s", relay_errors.ErrNotFound, p.ID, p.ConvoID)
		}

		d, err := tx.GetDelivery(ctx, m.ID, actor.UserID)
		if errors.Is(err, relay_errors.ErrNotFound) {
			d = message.DeliveryState{MessageID: m.ID, UserID: actor.UserID}
		} else if err != nil {
			return err
		}

		at = s.now()
		if kind == events.KindMessageSeen {
			d.MarkSeen(at)
			participant.LastReadAt = sql.NullTime{Time: at, Valid: true}
			if err := tx.UpdateParticipant(ctx, participant); err != nil {
				return err
			}
		} else {
			d.MarkDelivered(at)
		}
		return tx.UpsertDelivery(ctx, d)
	})
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		ConvoID:       p.ConvoID,
		Frame:         events.NewBroadcast(kind, events.Receipt{MessageID: p.ID, UserID: actor.UserID, Timestamp: at}, p.LocalID),
		ExcludeUserID: actor.UserID,
	}, nil
}
