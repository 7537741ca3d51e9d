package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"convo-relay/internal/domain/conversation"
	"convo-relay/internal/domain/message"
	relay_errors "convo-relay/pkg/errors"
)

func seedConvo(t *testing.T, s StateStore, convoID string, members ...string) time.Time {
	t.Helper()
	now := relay_errors.NowUTC()
	err := s.WithTx(context.Background(), func(tx StateTx) error {
		if _, err := tx.InsertConvo(context.Background(), conversation.Convo{ID: convoID, CreatedAt: now, UpdatedAt: now}); err != nil {
			return err
		}
		for i, uid := range members {
			p := conversation.Participant{ConvoID: convoID, UserID: uid, Role: conversation.RoleMember, JoinedAt: now.Add(time.Duration(i) * time.Microsecond)}
			if _, err := tx.InsertParticipant(context.Background(), p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed convo: %v", err)
	}
	return now
}

func TestMemoryStoreRollbackOnError(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx StateTx) error {
		if _, err := tx.InsertConvo(ctx, conversation.Convo{ID: "c1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx error = %v, want boom", err)
	}

	err = s.WithTx(ctx, func(tx StateTx) error {
		_, err := tx.GetConvo(ctx, "c1")
		return err
	})
	if !errors.Is(err, relay_errors.ErrNotFound) {
		t.Fatalf("convo survived rollback: %v", err)
	}
}

func TestMemoryStoreMessageUniqueness(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := seedConvo(t, s, "c1", "a", "b")

	insert := func(id string) bool {
		var inserted bool
		err := s.WithTx(ctx, func(tx StateTx) error {
			var err error
			inserted, err = tx.InsertMessage(ctx, message.Message{
				ID: id, LocalID: "m1", ConvoID: "c1", SenderID: "a",
				Body: message.Active{Content: "hi"}, CreatedAt: now, UpdatedAt: now,
			})
			return err
		})
		if err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
		return inserted
	}

	if !insert("id-1") {
		t.Fatal("first insert was not applied")
	}
	if insert("id-2") {
		t.Fatal("second insert with same (sender, local_id) was applied")
	}

	msgs, err := s.ListMessagesSince(ctx, "b", time.Time{})
	if err != nil {
		t.Fatalf("ListMessagesSince: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "id-1" {
		t.Fatalf("messages = %+v, want only id-1", msgs)
	}
}

func TestMemoryStoreSyncScopedToMembership(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedConvo(t, s, "c1", "a", "b")
	seedConvo(t, s, "c2", "b")

	convos, err := s.ListConvosSince(ctx, "a", time.Time{})
	if err != nil {
		t.Fatalf("ListConvosSince: %v", err)
	}
	if len(convos) != 1 || convos[0].ID != "c1" {
		t.Fatalf("convos for a = %+v", convos)
	}

	convos, _ = s.ListConvosSince(ctx, "b", time.Time{})
	if len(convos) != 2 {
		t.Fatalf("convos for b = %d, want 2", len(convos))
	}

	future := relay_errors.NowUTC().Add(time.Hour)
	convos, _ = s.ListConvosSince(ctx, "b", future)
	if len(convos) != 0 {
		t.Fatalf("since in the future returned %d convos", len(convos))
	}
}

func TestMemoryStoreParticipantOrder(t *testing.T) {
	s := NewMemoryStore()
	seedConvo(t, s, "c1", "z", "a", "m")

	ids, err := s.ListParticipantIDs(context.Background(), "c1")
	if err != nil {
		t.Fatalf("ListParticipantIDs: %v", err)
	}
	want := []string{"z", "a", "m"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}

func TestMemoryStoreGetUser(t *testing.T) {
	ctx := context.Background()

	s := NewMemoryStore()
	if _, err := s.GetUser(ctx, "ghost"); !errors.Is(err, relay_errors.ErrNotFound) {
		t.Fatalf("GetUser unknown = %v, want ErrNotFound", err)
	}

	s = NewMemoryStore(WithAutoProvisionedUsers())
	u, err := s.GetUser(ctx, "ghost")
	if err != nil || !u.IsActive || u.ID != "ghost" {
		t.Fatalf("auto-provisioned user = %+v, %v", u, err)
	}
}
