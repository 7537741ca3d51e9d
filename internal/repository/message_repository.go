package repository

import (
	"context"
	"database/sql"

	"convo-relay/internal/domain/message"
	relay_errors "convo-relay/pkg/errors"
)

func scanMessage(row rowScanner) (message.Message, error) {
	var (
		m       message.Message
		content sql.NullString
		deleted bool
	)
	err := row.Scan(&m.ID, &m.LocalID, &m.ConvoID, &m.SenderID, &content, &deleted, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return message.Message{}, err
	}
	if deleted {
		m.Body = message.Deleted{}
	} else {
		m.Body = message.Active{Content: content.String}
	}
	return m, nil
}

// bodyColumns flattens the body into its (content, deleted) columns.
func bodyColumns(m message.Message) (sql.NullString, bool) {
	if c := m.Content(); c != nil {
		return sql.NullString{String: *c, Valid: true}, false
	}
	return sql.NullString{}, true
}

func (t *pgTx) GetMessage(ctx context.Context, id string) (message.Message, error) {
	m, err := scanMessage(t.q.QueryRowContext(ctx, `
		SELECT id, local_id, convo_id, sender_id, content, deleted, created_at, updated_at
		FROM messages
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return message.Message{}, notFound(err)
	}
	return m, nil
}

func (t *pgTx) GetMessageByLocalID(ctx context.Context, senderID, localID string) (message.Message, error) {
	m, err := scanMessage(t.q.QueryRowContext(ctx, `
		SELECT id, local_id, convo_id, sender_id, content, deleted, created_at, updated_at
		FROM messages
		WHERE sender_id = $1 AND local_id = $2
	`, senderID, localID))
	if err != nil {
		return message.Message{}, notFound(err)
	}
	return m, nil
}

func (t *pgTx) InsertMessage(ctx context.Context, m message.Message) (bool, error) {
	content, deleted := bodyColumns(m)
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO messages (id, local_id, convo_id, sender_id, content, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (sender_id, local_id) DO NOTHING
	`, m.ID, m.LocalID, m.ConvoID, m.SenderID, content, deleted, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return false, relay_errors.ErrAlreadyExists
		}
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (t *pgTx) UpdateMessage(ctx context.Context, m message.Message) error {
	content, deleted := bodyColumns(m)
	res, err := t.q.ExecContext(ctx, `
		UPDATE messages
		SET content = $2, deleted = $3, updated_at = $4
		WHERE id = $1
	`, m.ID, content, deleted, m.UpdatedAt)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (t *pgTx) GetDelivery(ctx context.Context, messageID, userID string) (message.DeliveryState, error) {
	var d message.DeliveryState
	err := t.q.QueryRowContext(ctx, `
		SELECT message_id, user_id, delivered_at, seen_at
		FROM message_deliveries
		WHERE message_id = $1 AND user_id = $2
	`, messageID, userID).Scan(&d.MessageID, &d.UserID, &d.DeliveredAt, &d.SeenAt)
	if err != nil {
		return message.DeliveryState{}, notFound(err)
	}
	return d, nil
}

func (t *pgTx) UpsertDelivery(ctx context.Context, d message.DeliveryState) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO message_deliveries (message_id, user_id, delivered_at, seen_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id, user_id)
		DO UPDATE SET delivered_at = EXCLUDED.delivered_at, seen_at = EXCLUDED.seen_at
	`, d.MessageID, d.UserID, d.DeliveredAt, d.SeenAt)
	return err
}
