package memory

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/foodmarket/internal/domain"
)

func TestOutboxRepository_EnqueueAndPull(t *testing.T) {
	repo := NewOutboxRepository()

	first, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "order-1",
		EventType:     "order.placed",
		Payload:       []byte(`{"order_id":"order-1"}`),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if first.ID == "" {
		t.Fatal("enqueue must assign an id")
	}

	time.Sleep(time.Millisecond)
	second, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "review",
		AggregateID:   "review-1",
		EventType:     "review.created",
		Payload:       []byte(`{}`),
	})
	if err != nil {
		t.Fatalf("enqueue second: %v", err)
	}

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].ID != first.ID {
		t.Fatalf("oldest message must come first")
	}

	// Лимит ограничивает размер батча.
	pending, err = repo.PullPending(1)
	if err != nil {
		t.Fatalf("pull limited: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("limited pending = %d, want 1", len(pending))
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 2 || stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if err := repo.MarkSent(first.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := repo.MarkFailed(second.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	pending, _ = repo.PullPending(10)
	if len(pending) != 0 {
		t.Fatalf("pending after marks = %d, want 0", len(pending))
	}

	stats, _ = repo.Stats()
	if stats.PendingCount != 0 {
		t.Fatalf("pending count = %d, want 0", stats.PendingCount)
	}
}

func TestOutboxRepository_MarkUnknownID(t *testing.T) {
	repo := NewOutboxRepository()
	if err := repo.MarkSent("missing"); err == nil {
		t.Fatal("marking unknown id must fail")
	}
}
