package services

import (
	"context"
	"errors"

	"convo-relay/internal/domain/message"
	"convo-relay/internal/repository"
	relay_errors "convo-relay/pkg/errors"
)

// IdempotencyGuard enforces one message per (sender, local id).
type IdempotencyGuard struct{}

// Claim returns the message stored under candidate's (sender, local id).
// When none exists candidate is inserted and created is true. The insert is
// constrained, so a concurrent claim that wins the race is read back rather
// than duplicated.
func (IdempotencyGuard) Claim(ctx context.Context, tx repository.StateTx, candidate message.Message) (msg message.Message, created bool, err error) {
	existing, err := tx.GetMessageByLocalID(ctx, candidate.SenderID, candidate.LocalID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, relay_errors.ErrNotFound) {
		return message.Message{}, false, err
	}

	inserted, err := tx.InsertMessage(ctx, candidate)
	if err != nil {
		return message.Message{}, false, err
	}
	if inserted {
		return candidate, true, nil
	}

	existing, err = tx.GetMessageByLocalID(ctx, candidate.SenderID, candidate.LocalID)
	if err != nil {
		return message.Message{}, false, err
	}
	return existing, false, nil
}
