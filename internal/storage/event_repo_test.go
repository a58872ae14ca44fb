package storage

import (
	"context"
	"errors"
	"testing"
)

func queueEvents(t *testing.T, repo *IndexRepo, sourceIDs ...string) {
	t.Helper()
	for _, sid := range sourceIDs {
		_, err := repo.ApplyChunk(context.Background(), testWrite(sid, "content for "+sid, true),
			func(context.Context, int64, []int64) error { return nil })
		if err != nil {
			t.Fatalf("ApplyChunk(%s) error = %v", sid, err)
		}
	}
}

func TestEventRepo_ListPending(t *testing.T) {
	db := newTestDB(t)
	repo := NewEventRepo(db)
	ctx := context.Background()

	events, err := repo.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("fresh queue has %d events, want 0", len(events))
	}

	queueEvents(t, NewIndexRepo(db), "a::chunk_0", "a::chunk_1", "b::chunk_0")

	events, err = repo.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}

	// Oldest first; same-timestamp rows fall back to id order.
	for i := 1; i < len(events); i++ {
		if events[i].ID < events[i-1].ID {
			t.Errorf("events out of order: id %d before %d", events[i-1].ID, events[i].ID)
		}
	}
	if events[0].SourceID != "a::chunk_0" {
		t.Errorf("first event source = %q, want a::chunk_0", events[0].SourceID)
	}
}

func TestEventRepo_MarkConsumed(t *testing.T) {
	db := newTestDB(t)
	repo := NewEventRepo(db)
	ctx := context.Background()

	queueEvents(t, NewIndexRepo(db), "a::chunk_0")

	events, err := repo.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	if err := repo.MarkConsumed(ctx, events[0].ID); err != nil {
		t.Fatalf("MarkConsumed() error = %v", err)
	}

	remaining, err := repo.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("consumed event still pending: %v", remaining)
	}

	// Consuming twice surfaces ErrNotFound, not a silent success.
	if err := repo.MarkConsumed(ctx, events[0].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second MarkConsumed() error = %v, want ErrNotFound", err)
	}
}

func TestEventRepo_MarkConsumedUnknownID(t *testing.T) {
	db := newTestDB(t)
	repo := NewEventRepo(db)

	if err := repo.MarkConsumed(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkConsumed(42) error = %v, want ErrNotFound", err)
	}
}
