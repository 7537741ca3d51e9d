package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"convo-relay/internal/events"
	"convo-relay/internal/repository"
	relay_errors "convo-relay/pkg/errors"
	"convo-relay/pkg/logger"
)

// Outcome is what a handler asks to be fanned out after its transaction
// commits.
type Outcome struct {
	ConvoID       string
	Frame         events.Broadcast
	ExcludeUserID string
}

type BroadcastService struct {
	participants repository.ParticipantLister
	registry     Registry
	log          *logger.Logger
}

func NewBroadcastService(participants repository.ParticipantLister, registry Registry, l *logger.Logger) *BroadcastService {
	if l == nil {
		l = logger.NewNop()
	}
	return &BroadcastService{participants: participants, registry: registry, log: l}
}

// Broadcast delivers frame to every live connection of every participant of
// convoID except excludeUserID. A failed write drops only that connection.
// It returns the number of connections written to.
func (s *BroadcastService) Broadcast(ctx context.Context, convoID string, frame events.Broadcast, excludeUserID string) (int, error) {
	raw, err := events.Encode(frame)
	if err != nil {
		return 0, err
	}
	userIDs, err := s.participants.ListParticipantIDs(ctx, convoID)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, uid := range userIDs {
		if excludeUserID != "" && uid == excludeUserID {
			continue
		}
		for _, conn := range s.registry.ConnectionsFor(uid) {
			if err := conn.Send(raw); err != nil {
				s.drop(ctx, uid, conn, err)
				continue
			}
			delivered++
		}
	}
	return delivered, nil
}

func (s *BroadcastService) Fanout(ctx context.Context, out Outcome) (int, error) {
	return s.Broadcast(ctx, out.ConvoID, out.Frame, out.ExcludeUserID)
}

func (s *BroadcastService) drop(ctx context.Context, userID string, conn Connection, cause error) {
	err := fmt.Errorf("%w: %v", relay_errors.ErrTransport, cause)
	s.log.WithContext(ctx).Warn("dropping connection after failed write",
		zap.String("user_id", userID),
		zap.String("client_id", conn.ID()),
		zap.Error(err),
	)
	s.registry.Unregister(userID, conn)
	_ = conn.Close()
}
