package repository

import (
	"context"
	"database/sql"
	"time"

	"convo-relay/internal/domain/conversation"
	"convo-relay/internal/domain/message"
	"convo-relay/internal/domain/user"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx StateTx) error) error {
	return WithTx(ctx, s.db, func(q DBTX) error {
		return fn(&pgTx{q: q})
	})
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) ListParticipantIDs(ctx context.Context, convoID string) ([]string, error) {
	return listParticipantIDs(ctx, s.db, convoID)
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (user.User, error) {
	var u user.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, is_active
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.DisplayName, &u.Email, &u.IsActive)
	if err != nil {
		return user.User{}, notFound(err)
	}
	return u, nil
}

func (s *PostgresStore) ListConvosSince(ctx context.Context, userID string, since time.Time) ([]conversation.Convo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.local_id, c.title, c.is_group, c.created_at, c.updated_at
		FROM convos c
		JOIN convo_participants p ON p.convo_id = c.id
		WHERE p.user_id = $1 AND c.updated_at >= $2
		ORDER BY c.updated_at DESC, c.id
	`, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convos []conversation.Convo
	for rows.Next() {
		c, err := scanConvo(rows)
		if err != nil {
			return nil, err
		}
		convos = append(convos, c)
	}
	return convos, rows.Err()
}

func (s *PostgresStore) ListMessagesSince(ctx context.Context, userID string, since time.Time) ([]message.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.local_id, m.convo_id, m.sender_id, m.content, m.deleted, m.created_at, m.updated_at
		FROM messages m
		JOIN convo_participants p ON p.convo_id = m.convo_id
		WHERE p.user_id = $1 AND m.updated_at >= $2
		ORDER BY m.updated_at DESC, m.id
	`, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []message.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// pgTx implements StateTx over a *sql.Tx.
type pgTx struct {
	q DBTX
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func listParticipantIDs(ctx context.Context, q DBTX, convoID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT user_id
		FROM convo_participants
		WHERE convo_id = $1
		ORDER BY joined_at, user_id
	`, convoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
