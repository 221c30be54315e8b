package postgres

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/foodmarket/internal/domain"
)

func TestOrderRepository_PostgresLinesKeepPlacementOrder(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)

	// Идентификаторы позиций выбраны в обратном лексикографическом порядке,
	// а created_at у всех одинаковый: порядок чтения обязан определяться
	// порядком добавления, а не id.
	order := domain.Order{
		ID:              "order-lines-1",
		CustomerID:      "customer-1",
		Status:          domain.OrderStatusPlaced,
		TotalMinor:      4500,
		DeliveryAddress: "Abaya 10",
		CreatedAt:       now,
		UpdatedAt:       now,
		Lines: []domain.OrderLine{
			{ID: "line-c", MealID: "meal-1", ProviderID: "provider-1", Name: "Plov", Qty: 2, PriceMinor: 1400, CreatedAt: now},
			{ID: "line-b", MealID: "meal-2", ProviderID: "provider-1", Name: "Achichuk", Qty: 1, PriceMinor: 600, CreatedAt: now},
			{ID: "line-a", MealID: "meal-3", ProviderID: "provider-2", Name: "Shashlik", Qty: 1, PriceMinor: 1100, CreatedAt: now},
		},
	}

	if err := repo.Create(order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	got, err := repo.Get(order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if len(got.Lines) != len(order.Lines) {
		t.Fatalf("unexpected lines count: got=%d want=%d", len(got.Lines), len(order.Lines))
	}
	for i, want := range order.Lines {
		if got.Lines[i].ID != want.ID {
			t.Fatalf("line %d out of placement order: got=%s want=%s", i, got.Lines[i].ID, want.ID)
		}
		if got.Lines[i].MealID != want.MealID || got.Lines[i].Qty != want.Qty || got.Lines[i].PriceMinor != want.PriceMinor {
			t.Fatalf("line %d payload mismatch: got=%+v want=%+v", i, got.Lines[i], want)
		}
	}
}
