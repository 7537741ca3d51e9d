package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"convo-relay/internal/domain/message"
	"convo-relay/pkg/database"
)

// newPostgresStore needs TEST_DATABASE_URL pointing at a disposable database.
func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := database.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := database.ApplyRawMigrations(ctx, db, "../../migrations"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := database.TruncateAllTables(ctx, db); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db)
}

func TestPostgresStoreConcurrentSendIsIdempotent(t *testing.T) {
	checkConcurrentInsertIsIdempotent(t, newPostgresStore(t))
}

func TestPostgresStoreConvoUpdatesSerialize(t *testing.T) {
	checkConvoUpdatesSerialize(t, newPostgresStore(t))
}

func TestPostgresStoreSoftDeleteRoundTrip(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	now := seedConvo(t, s, "c1", "a")
	id := uuid.NewString()

	err := s.WithTx(ctx, func(tx StateTx) error {
		_, err := tx.InsertMessage(ctx, message.Message{
			ID: id, LocalID: "m1", ConvoID: "c1", SenderID: "a",
			Body: message.Active{Content: "hi"}, CreatedAt: now, UpdatedAt: now,
		})
		if err != nil {
			return err
		}
		m, err := tx.GetMessage(ctx, id)
		if err != nil {
			return err
		}
		m.Delete()
		m.Touch(now.Add(time.Second))
		return tx.UpdateMessage(ctx, m)
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	msgs, err := s.ListMessagesSince(ctx, "a", time.Time{})
	if err != nil || len(msgs) != 1 {
		t.Fatalf("ListMessagesSince = %v, %v", msgs, err)
	}
	if !msgs[0].IsDeleted() || msgs[0].Content() != nil || msgs[0].SenderID != "a" {
		t.Fatalf("message after delete = %+v", msgs[0])
	}
}
