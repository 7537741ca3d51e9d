package repository

import (
	"context"

	"convo-relay/internal/domain/conversation"
)

func scanConvo(row rowScanner) (conversation.Convo, error) {
	var c conversation.Convo
	err := row.Scan(&c.ID, &c.LocalID, &c.Title, &c.IsGroup, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (t *pgTx) GetConvo(ctx context.Context, id string) (conversation.Convo, error) {
	c, err := scanConvo(t.q.QueryRowContext(ctx, `
		SELECT id, local_id, title, is_group, created_at, updated_at
		FROM convos
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return conversation.Convo{}, notFound(err)
	}
	return c, nil
}

func (t *pgTx) InsertConvo(ctx context.Context, c conversation.Convo) (bool, error) {
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO convos (id, local_id, title, is_group, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, c.ID, c.LocalID, c.Title, c.IsGroup, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (t *pgTx) UpdateConvo(ctx context.Context, c conversation.Convo) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE convos
		SET title = $2, is_group = $3, updated_at = $4
		WHERE id = $1
	`, c.ID, c.Title, c.IsGroup, c.UpdatedAt)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (t *pgTx) GetParticipant(ctx context.Context, convoID, userID string) (conversation.Participant, error) {
	var p conversation.Participant
	err := t.q.QueryRowContext(ctx, `
		SELECT convo_id, user_id, role, joined_at, last_read_at
		FROM convo_participants
		WHERE convo_id = $1 AND user_id = $2
	`, convoID, userID).Scan(&p.ConvoID, &p.UserID, &p.Role, &p.JoinedAt, &p.LastReadAt)
	if err != nil {
		return conversation.Participant{}, notFound(err)
	}
	return p, nil
}

func (t *pgTx) InsertParticipant(ctx context.Context, p conversation.Participant) (bool, error) {
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO convo_participants (convo_id, user_id, role, joined_at, last_read_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (convo_id, user_id) DO NOTHING
	`, p.ConvoID, p.UserID, p.Role, p.JoinedAt, p.LastReadAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (t *pgTx) UpdateParticipant(ctx context.Context, p conversation.Participant) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE convo_participants
		SET role = $3, last_read_at = $4
		WHERE convo_id = $1 AND user_id = $2
	`, p.ConvoID, p.UserID, p.Role, p.LastReadAt)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (t *pgTx) ListParticipantIDs(ctx context.Context, convoID string) ([]string, error) {
	return listParticipantIDs(ctx, t.q, convoID)
}
