package repository

import (
	"context"
	"time"

	"convo-relay/internal/domain/conversation"
	"convo-relay/internal/domain/message"
	"convo-relay/internal/domain/user"
)

type ParticipantLister interface {
	ListParticipantIDs(ctx context.Context, convoID string) ([]string, error)
}

type UserReader interface {
	GetUser(ctx context.Context, id string) (user.User, error)
}

// SyncReader serves the HTTP delta endpoints. Both lists are scoped to
// convos the user participates in, include rows with updated_at >= since
// and are ordered newest first.
type SyncReader interface {
	ListConvosSince(ctx context.Context, userID string, since time.Time) ([]conversation.Convo, error)
	ListMessagesSince(ctx context.Context, userID string, since time.Time) ([]message.Message, error)
}

// StateStore is the durable state behind the realtime handlers. Every
// mutation runs inside WithTx; fn's error rolls the transaction back.
type StateStore interface {
	ParticipantLister
	UserReader
	SyncReader

	WithTx(ctx context.Context, fn func(tx StateTx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// StateTx is one atomic unit of work. GetConvo and GetMessage lock the
// row until the transaction ends.
type StateTx interface {
	GetConvo(ctx context.Context, id string) (conversation.Convo, error)
	InsertConvo(ctx context.Context, c conversation.Convo) (bool, error)
	UpdateConvo(ctx context.Context, c conversation.Convo) error

	GetParticipant(ctx context.Context, convoID, userID string) (conversation.Participant, error)
	InsertParticipant(ctx context.Context, p conversation.Participant) (bool, error)
	UpdateParticipant(ctx context.Context, p conversation.Participant) error
	ListParticipantIDs(ctx context.Context, convoID string) ([]string, error)

	GetMessage(ctx context.Context, id string) (message.Message, error)
	GetMessageByLocalID(ctx context.Context, senderID, localID string) (message.Message, error)
	// InsertMessage reports false when (sender_id, local_id) already exists.
	InsertMessage(ctx context.Context, m message.Message) (bool, error)
	UpdateMessage(ctx context.Context, m message.Message) error

	GetDelivery(ctx context.Context, messageID, userID string) (message.DeliveryState, error)
	UpsertDelivery(ctx context.Context, d message.DeliveryState) error
}
