package conversation

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func seedConversations(t *testing.T, store *Store, userID string, n int, start time.Time) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		_, err := store.Save(ctx, &Conversation{
			UserID:       userID,
			Title:        fmt.Sprintf("conv %d", i),
			LastActivity: start.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("seeding conversation %d: %v", i, err)
		}
	}
}

func TestCleanupOldCountBoxed(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	seedConversations(t, store, "user123", 120, time.Now().UTC().Add(-3*time.Hour))

	deleted, err := store.CleanupOld(ctx, "user123", 50)
	if err != nil {
		t.Fatalf("CleanupOld: %v", err)
	}
	if deleted != 70 {
		t.Errorf("expected 70 deleted, got %d", deleted)
	}

	remaining, _ := store.ListByUser(ctx, "user123", Page{})
	if len(remaining) != 50 {
		t.Fatalf("expected 50 remaining, got %d", len(remaining))
	}
	// The survivors are the 50 most recent.
	if remaining[len(remaining)-1].Title != "conv 70" {
		t.Errorf("expected oldest survivor conv 70, got %q", remaining[len(remaining)-1].Title)
	}
}

func TestCleanupOldUnderLimitIsNoOp(t *testing.T) {
	store := setupTestStore(t)

	seedConversations(t, store, "user123", 10, time.Now().UTC())

	deleted, err := store.CleanupOld(context.Background(), "user123", 50)
	if err != nil {
		t.Fatalf("CleanupOld: %v", err)
	}
	if deleted != 0 {
		t.Errorf("expected 0 deleted, got %d", deleted)
	}
}

func TestCleanupOldScopedToUser(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	seedConversations(t, store, "user123", 5, time.Now().UTC())
	seedConversations(t, store, "user456", 5, time.Now().UTC())

	store.CleanupOld(ctx, "user123", 2)

	other, _ := store.ListByUser(ctx, "user456", Page{})
	if len(other) != 5 {
		t.Errorf("other user's conversations were touched: %d remain", len(other))
	}
}

func TestCleanupOlderThan(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	seedConversations(t, store, "user123", 3, now.Add(-100*24*time.Hour)) // stale
	seedConversations(t, store, "user123", 2, now.Add(-time.Hour))        // fresh

	deleted, err := store.CleanupOlderThan(ctx, "user123", now.Add(-90*24*time.Hour))
	if err != nil {
		t.Fatalf("CleanupOlderThan: %v", err)
	}
	if deleted != 3 {
		t.Errorf("expected 3 deleted, got %d", deleted)
	}

	remaining, _ := store.ListByUser(ctx, "user123", Page{})
	if len(remaining) != 2 {
		t.Errorf("expected 2 remaining, got %d", len(remaining))
	}
}

func TestSweepAll(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	seedConversations(t, store, "alice", 4, now.Add(-200*24*time.Hour)) // all stale
	seedConversations(t, store, "bob", 60, now.Add(-time.Hour))         // over count limit

	total, err := store.SweepAll(ctx, 50, 90*24*time.Hour)
	if err != nil {
		t.Fatalf("SweepAll: %v", err)
	}
	if total != 14 {
		t.Errorf("expected 14 deleted (4 stale + 10 excess), got %d", total)
	}
}
