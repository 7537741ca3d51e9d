package repository

import (
	"context"
	"database/sql"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"convo-relay/internal/domain/message"
	relay_errors "convo-relay/pkg/errors"
)

// Shared checks run against every StateStore implementation.

func checkConcurrentInsertIsIdempotent(t *testing.T, s StateStore) {
	t.Helper()
	ctx := context.Background()
	seedConvo(t, s, "c1", "a", "b")

	const workers = 8
	var wg sync.WaitGroup
	inserted := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			now := relay_errors.NowUTC()
			_ = s.WithTx(ctx, func(tx StateTx) error {
				ok, err := tx.InsertMessage(ctx, message.Message{
					ID: uuid.NewString(), LocalID: "m1", ConvoID: "c1", SenderID: "a",
					Body: message.Active{Content: "hi"}, CreatedAt: now, UpdatedAt: now,
				})
				inserted <- ok
				return err
			})
		}()
	}
	wg.Wait()
	close(inserted)

	applied := 0
	for ok := range inserted {
		if ok {
			applied++
		}
	}
	if applied != 1 {
		t.Fatalf("%d inserts applied, want 1", applied)
	}

	msgs, err := s.ListMessagesSince(ctx, "a", time.Time{})
	if err != nil {
		t.Fatalf("ListMessagesSince: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
}

// checkConvoUpdatesSerialize runs read-modify-write transactions on one convo
// concurrently. Any lost update shows up as a short counter.
func checkConvoUpdatesSerialize(t *testing.T, s StateStore) {
	t.Helper()
	ctx := context.Background()
	seedConvo(t, s, "c1", "a")

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.WithTx(ctx, func(tx StateTx) error {
				c, err := tx.GetConvo(ctx, "c1")
				if err != nil {
					return err
				}
				n, _ := strconv.Atoi(c.Title.String)
				c.Title = sql.NullString{String: strconv.Itoa(n + 1), Valid: true}
				c.Bump(relay_errors.NowUTC())
				return tx.UpdateConvo(ctx, c)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	convos, err := s.ListConvosSince(ctx, "a", time.Time{})
	if err != nil || len(convos) != 1 {
		t.Fatalf("ListConvosSince = %v, %v", convos, err)
	}
	if got := convos[0].Title.String; got != strconv.Itoa(workers) {
		t.Fatalf("counter = %s, want %d", got, workers)
	}
}

func TestMemoryStoreConcurrentInsertIsIdempotent(t *testing.T) {
	checkConcurrentInsertIsIdempotent(t, NewMemoryStore())
}

func TestMemoryStoreConvoUpdatesSerialize(t *testing.T) {
	checkConvoUpdatesSerialize(t, NewMemoryStore())
}
