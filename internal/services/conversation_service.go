package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"convo-relay/internal/domain/conversation"
	"convo-relay/internal/domain/user"
	"convo-relay/internal/events"
	"convo-relay/internal/repository"
	relay_errors "convo-relay/pkg/errors"
)

type ConversationService struct {
	store repository.StateStore
	now   func() time.Time
}

func NewConversationService(store repository.StateStore) *ConversationService {
	return &ConversationService{store: store, now: relay_errors.NowUTC}
}

func toNullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

// ackFromConvo prefers the token the client sent, then the one stored on
// the convo.
func ackFromConvo(sent *string, c conversation.Convo) *string {
	if sent != nil {
		return sent
	}
	if c.LocalID.Valid {
		id := c.LocalID.String
		return &id
	}
	return nil
}

// memberIDs returns the distinct ids with the actor first.
func memberIDs(actorID string, participants []string) []string {
	seen := map[string]bool{actorID: true}
	ids := []string{actorID}
	for _, uid := range participants {
		uid = strings.TrimSpace(uid)
		if uid == "" || seen[uid] {
			continue
		}
		seen[uid] = true
		ids = append(ids, uid)
	}
	return ids
}

func requireMember(ctx context.Context, tx repository.StateTx, convoID, userID string) (conversation.Participant, error) {
	p, err := tx.GetParticipant(ctx, convoID, userID)
	if errors.Is(err, relay_errors.ErrNotFound) {
		return conversation.Participant{}, fmt.Errorf("%w: not a participant of convo %s", relay_errors.ErrForbidden, convoID)
	}
	return p, err
}

// CreateConvo creates the convo when its id is new, otherwise it acts as a
// membership and title update that only an existing member may issue.
func (s *ConversationService) CreateConvo(ctx context.Context, actor user.Identity, p events.CreateConvoPayload) (Outcome, error) {
	if err := p.Validate(); err != nil {
		return Outcome{}, err
	}
	members := memberIDs(actor.UserID, p.Participants)

	var convo conversation.Convo
	err := s.store.WithTx(ctx, func(tx repository.StateTx) error {
		now := s.now()
		existing := true

		c, err := tx.GetConvo(ctx, p.ID)
		switch {
		case errors.Is(err, relay_errors.ErrNotFound):
			c = conversation.Convo{
				ID:        p.ID,
				LocalID:   toNullString(p.LocalID),
				Title:     toNullString(p.Title),
				IsGroup:   len(members) > 2,
				CreatedAt: now,
				UpdatedAt: now,
			}
			inserted, err := tx.InsertConvo(ctx, c)
			if err != nil {
				return err
			}
			if inserted {
				existing = false
			} else if c, err = tx.GetConvo(ctx, p.ID); err != nil {
				return err
			}
		case err != nil:
			return err
		}

		if existing {
			if _, err := requireMember(ctx, tx, c.ID, actor.UserID); err != nil {
				return err
			}
			if p.Title != nil {
				c.Title = toNullString(p.Title)
			}
		}

		for _, uid := range members {
			role := conversation.RoleMember
			if uid == actor.UserID && !existing {
				role = conversation.RoleOwner
			}
			if _, err := tx.InsertParticipant(ctx, conversation.Participant{
				ConvoID:  c.ID,
				UserID:   uid,
				Role:     role,
				JoinedAt: now,
			}); err != nil {
				return err
			}
		}

		if existing && !c.IsGroup {
			all, err := tx.ListParticipantIDs(ctx, c.ID)
			if err != nil {
				return err
			}
			c.IsGroup = len(all) > 2
		}

		c.Bump(now)
		if err := tx.UpdateConvo(ctx, c); err != nil {
			return err
		}
		convo = c
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		ConvoID: convo.ID,
		Frame:   events.NewBroadcast(events.KindCreateConvo, events.NewCreatedConvo(convo), ackFromConvo(p.LocalID, convo)),
	}, nil
}

// UpdateConvo renames a convo. Any participant may do so.
func (s *ConversationService) UpdateConvo(ctx context.Context, actor user.Identity, p events.UpdateConvoPayload) (Outcome, error) {
	if err := p.Validate(); err != nil {
		return Outcome{}, err
	}

	var convo conversation.Convo
	err := s.store.WithTx(ctx, func(tx repository.StateTx) error {
		c, err := tx.GetConvo(ctx, p.ID)
		if err != nil {
			if errors.Is(err, relay_errors.ErrNotFound) {
				return fmt.Errorf("%w: convo %s", relay_errors.ErrNotFound, p.ID)
			}
			return err
		}
		if _, err := requireMember(ctx, tx, c.ID, actor.UserID); err != nil {
			return err
		}
		if p.Title != nil {
			c.Title = toNullString(p.Title)
		}
		c.Bump(s.now())
		if err := tx.UpdateConvo(ctx, c); err != nil {
			return err
		}
		convo = c
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		ConvoID: convo.ID,
		Frame:   events.NewBroadcast(events.KindUpdateConvo, events.NewUpdatedConvo(convo), ackFromConvo(p.LocalID, convo)),
	}, nil
}
