package services

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"convo-relay/internal/domain/user"
	"convo-relay/internal/events"
	relay_errors "convo-relay/pkg/errors"
	"convo-relay/pkg/logger"
)

// RateLimiter throttles SEND_MESSAGE per user.
type RateLimiter interface {
	AllowMessage(ctx context.Context, userID string) (bool, error)
}

type EventRouter struct {
	convos   *ConversationService
	messages *MessageService
	receipts *ReceiptService
	fanout   *BroadcastService
	limiter  RateLimiter
	log      *logger.Logger
}

func NewEventRouter(convos *ConversationService, messages *MessageService, receipts *ReceiptService, fanout *BroadcastService, limiter RateLimiter, l *logger.Logger) *EventRouter {
	if l == nil {
		l = logger.NewNop()
	}
	return &EventRouter{
		convos:   convos,
		messages: messages,
		receipts: receipts,
		fanout:   fanout,
		limiter:  limiter,
		log:      l,
	}
}

// Handle processes one inbound frame to completion, fanout included. A
// failure is answered with an ERROR frame on origin only and returned for
// logging; the connection stays usable either way.
func (r *EventRouter) Handle(ctx context.Context, actor user.Identity, origin Connection, raw []byte) error {
	kind, payload, err := events.Decode(raw)
	if err != nil {
		r.reply(ctx, origin, err)
		return err
	}

	out, err := r.dispatch(ctx, actor, kind, payload)
	if err != nil {
		r.reply(ctx, origin, err)
		return err
	}

	delivered, err := r.fanout.Fanout(ctx, out)
	if err != nil {
		// State is committed; peers catch up through sync.
		r.log.WithContext(ctx).Error("fanout failed",
			zap.String("event", kind.String()),
			zap.String("convo_id", out.ConvoID),
			zap.Error(err),
		)
		return nil
	}
	r.log.WithContext(ctx).Debug("event handled",
		zap.String("event", kind.String()),
		zap.String("convo_id", out.ConvoID),
		zap.Int("delivered", delivered),
	)
	return nil
}

func decodeInto[T any](raw json.RawMessage) (T, error) {
	var p T
	err := events.DecodePayload(raw, &p)
	return p, err
}

func (r *EventRouter) dispatch(ctx context.Context, actor user.Identity, kind events.Kind, raw json.RawMessage) (Outcome, error) {
	switch kind {
	case events.KindCreateConvo:
		p, err := decodeInto[events.CreateConvoPayload](raw)
		if err != nil {
			return Outcome{}, err
		}
		return r.convos.CreateConvo(ctx, actor, p)

	case events.KindUpdateConvo:
		p, err := decodeInto[events.UpdateConvoPayload](raw)
		if err != nil {
			return Outcome{}, err
		}
		return r.convos.UpdateConvo(ctx, actor, p)

	case events.KindSendMessage:
		p, err := decodeInto[events.SendMessagePayload](raw)
		if err != nil {
			return Outcome{}, err
		}
		if err := r.allowSend(ctx, actor.UserID); err != nil {
			return Outcome{}, err
		}
		return r.messages.SendMessage(ctx, actor, p)

	case events.KindDeleteMessage:
		p, err := decodeInto[events.DeleteMessagePayload](raw)
		if err != nil {
			return Outcome{}, err
		}
		return r.messages.DeleteMessage(ctx, actor, p)

	case events.KindUpdateMessage:
		p, err := decodeInto[events.UpdateMessagePayload](raw)
		if err != nil {
			return Outcome{}, err
		}
		return r.messages.UpdateMessage(ctx, actor, p)

	case events.KindMessageDelivered:
		p, err := decodeInto[events.ReceiptPayload](raw)
		if err != nil {
			return Outcome{}, err
		}
		return r.receipts.Delivered(ctx, actor, p)

	case events.KindMessageSeen:
		p, err := decodeInto[events.ReceiptPayload](raw)
		if err != nil {
			return Outcome{}, err
		}
		return r.receipts.Seen(ctx, actor, p)

	case events.KindUnknown:
		return Outcome{}, fmt.Errorf("%w: unknown event type", relay_errors.ErrProtocol)
	}
	return Outcome{}, fmt.Errorf("%w: unhandled event kind %d", relay_errors.ErrProtocol, kind)
}

// allowSend fails open when the limiter itself is unavailable.
func (r *EventRouter) allowSend(ctx context.Context, userID string) error {
	if r.limiter == nil {
		return nil
	}
	ok, err := r.limiter.AllowMessage(ctx, userID)
	if err != nil {
		r.log.WithContext(ctx).Warn("rate limiter unavailable", zap.Error(err))
		return nil
	}
	if !ok {
		return fmt.Errorf("%w: too many messages", relay_errors.ErrRateLimited)
	}
	return nil
}

func (r *EventRouter) reply(ctx context.Context, origin Connection, cause error) {
	if relay_errors.Code(cause) == relay_errors.CodeInternal {
		r.log.WithContext(ctx).Error("event failed", zap.String("client_id", origin.ID()), zap.Error(cause))
	}
	raw, err := events.Encode(events.NewErrorFrame(cause))
	if err != nil {
		return
	}
	if err := origin.Send(raw); err != nil {
		r.log.WithContext(ctx).Warn("error frame not delivered",
			zap.String("client_id", origin.ID()),
			zap.Error(fmt.Errorf("%w: %v", relay_errors.ErrTransport, err)),
		)
	}
}
