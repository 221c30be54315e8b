package review_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/foodmarket/internal/domain"
	"github.com/vladislavdragonenkov/foodmarket/internal/service/review"
	"github.com/vladislavdragonenkov/foodmarket/internal/storage/memory"
)

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: false, DisableTimestamp: true})
	logger.SetLevel(logrus.DebugLevel)
	return logger.WithField("component", "test")
}

type fixture struct {
	svc     *review.Service
	orders  domain.OrderRepository
	reviews domain.ReviewRepository
	catalog *memory.CatalogStore
	outbox  domain.OutboxRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	catalog := memory.NewCatalogStore()
	catalog.PutProvider(domain.ProviderProfile{
		ID:             "provider-1",
		UserID:         "user-provider-1",
		RestaurantName: "Plov House",
	})
	catalog.PutMeal(domain.Meal{
		ID:          "meal-1",
		ProviderID:  "provider-1",
		Name:        "Plov",
		PriceMinor:  1000,
		IsAvailable: true,
	})

	orders := memory.NewOrderRepository(catalog)
	reviews := memory.NewReviewRepository(catalog)
	outboxRepo := memory.NewOutboxRepository()
	svc := review.NewServiceWithoutMetrics(reviews, orders, catalog, outboxRepo, loggerForTests())

	return &fixture{svc: svc, orders: orders, reviews: reviews, catalog: catalog, outbox: outboxRepo}
}

// seedDeliveredOrder создаёт доставленный заказ покупателя с meal-1.
func (f *fixture) seedDeliveredOrder(t *testing.T, orderID, customerID string) {
	t.Helper()

	now := time.Now().UTC()
	err := f.orders.Create(domain.Order{
		ID:              orderID,
		CustomerID:      customerID,
		Status:          domain.OrderStatusDelivered,
		TotalMinor:      1000,
		DeliveryAddress: "Abaya 10",
		Lines: []domain.OrderLine{
			{
				ID:         orderID + "-line-1",
				MealID:     "meal-1",
				ProviderID: "provider-1",
				Name:       "Plov",
				Qty:        1,
				PriceMinor: 1000,
				CreatedAt:  now,
			},
		},
		CreatedAt:   now,
		UpdatedAt:   now,
		DeliveredAt: &now,
	})
	require.NoError(t, err)
}

func TestSubmit_RequiresDeliveredOrder(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.Submit(context.Background(), "customer-1", review.SubmitInput{
		MealID: "meal-1",
		Rating: 5,
	})
	require.ErrorIs(t, err, domain.ErrReviewNotEligible)
}

func TestSubmit_PlacedOrderNotEnough(t *testing.T) {
	f := newFixture(t)

	now := time.Now().UTC()
	require.NoError(t, f.orders.Create(domain.Order{
		ID:              "order-1",
		CustomerID:      "customer-1",
		Status:          domain.OrderStatusPlaced,
		TotalMinor:      1000,
		DeliveryAddress: "Abaya 10",
		Lines: []domain.OrderLine{
			{ID: "line-1", MealID: "meal-1", ProviderID: "provider-1", Name: "Plov", Qty: 1, PriceMinor: 1000, CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}))

	_, _, err := f.svc.Submit(context.Background(), "customer-1", review.SubmitInput{
		MealID: "meal-1",
		Rating: 5,
	})
	require.ErrorIs(t, err, domain.ErrReviewNotEligible)
}

func TestSubmit_MealNotFound(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.Submit(context.Background(), "customer-1", review.SubmitInput{
		MealID: "meal-ghost",
		Rating: 5,
	})
	require.ErrorIs(t, err, domain.ErrMealNotFound)
}

func TestSubmit_RatingValidation(t *testing.T) {
	f := newFixture(t)
	f.seedDeliveredOrder(t, "order-1", "customer-1")

	for _, rating := range []int{0, 6, -1} {
		_, _, err := f.svc.Submit(context.Background(), "customer-1", review.SubmitInput{
			MealID: "meal-1",
			Rating: rating,
		})
		require.ErrorIs(t, err, domain.ErrRatingOutOfRange, "rating %d", rating)
	}

	_, _, err := f.svc.Submit(context.Background(), "customer-1", review.SubmitInput{
		MealID:  "meal-1",
		Rating:  5,
		Comment: strings.Repeat("x", domain.CommentMaxLen+1),
	})
	require.ErrorIs(t, err, domain.ErrCommentTooLong)
}

func TestSubmit_UpdatesMealAggregate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedDeliveredOrder(t, "order-1", "customer-1")
	f.seedDeliveredOrder(t, "order-2", "customer-2")
	f.seedDeliveredOrder(t, "order-3", "customer-3")

	_, rating, err := f.svc.Submit(ctx, "customer-1", review.SubmitInput{MealID: "meal-1", Rating: 5})
	require.NoError(t, err)
	require.Equal(t, domain.MealRating{Average: 5, Count: 1}, rating)

	_, rating, err = f.svc.Submit(ctx, "customer-2", review.SubmitInput{MealID: "meal-1", Rating: 4})
	require.NoError(t, err)
	require.Equal(t, domain.MealRating{Average: 4.5, Count: 2}, rating)

	_, rating, err = f.svc.Submit(ctx, "customer-3", review.SubmitInput{MealID: "meal-1", Rating: 5})
	require.NoError(t, err)
	require.Equal(t, domain.MealRating{Average: 4.7, Count: 3}, rating)

	meal, err := f.catalog.GetMeal("meal-1")
	require.NoError(t, err)
	require.Equal(t, 4.7, meal.Rating)
	require.Equal(t, 3, meal.TotalReviews)

	// События мутаций дошли до outbox.
	pending, err := f.outbox.PullPending(10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	require.Equal(t, "review.created", pending[0].EventType)
}

func TestSubmit_DuplicateRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedDeliveredOrder(t, "order-1", "customer-1")

	_, _, err := f.svc.Submit(ctx, "customer-1", review.SubmitInput{MealID: "meal-1", Rating: 5})
	require.NoError(t, err)

	_, _, err = f.svc.Submit(ctx, "customer-1", review.SubmitInput{MealID: "meal-1", Rating: 3})
	require.ErrorIs(t, err, domain.ErrReviewExists)

	// Дубль отсекается до записи: агрегат остаётся от первого отзыва.
	meal, err := f.catalog.GetMeal("meal-1")
	require.NoError(t, err)
	require.Equal(t, 5.0, meal.Rating)
	require.Equal(t, 1, meal.TotalReviews)

	existing, err := f.reviews.FindByCustomerMeal("customer-1", "meal-1")
	require.NoError(t, err)
	require.Equal(t, 5, existing.Rating)
}

func TestEdit_AuthorOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedDeliveredOrder(t, "order-1", "customer-1")

	created, _, err := f.svc.Submit(ctx, "customer-1", review.SubmitInput{MealID: "meal-1", Rating: 2, Comment: "cold"})
	require.NoError(t, err)

	newRating := 5
	updated, rating, err := f.svc.Edit(ctx, "customer-1", created.ID, review.EditInput{Rating: &newRating})
	require.NoError(t, err)
	require.Equal(t, 5, updated.Rating)
	require.Equal(t, "cold", updated.Comment, "comment must stay untouched on partial edit")
	require.Equal(t, domain.MealRating{Average: 5, Count: 1}, rating)

	_, _, err = f.svc.Edit(ctx, "customer-2", created.ID, review.EditInput{Rating: &newRating})
	require.ErrorIs(t, err, domain.ErrForbidden)

	badRating := 9
	_, _, err = f.svc.Edit(ctx, "customer-1", created.ID, review.EditInput{Rating: &badRating})
	require.ErrorIs(t, err, domain.ErrRatingOutOfRange)

	_, _, err = f.svc.Edit(ctx, "customer-1", "missing", review.EditInput{Rating: &newRating})
	require.ErrorIs(t, err, domain.ErrReviewNotFound)
}

func TestDelete_AuthorOrAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedDeliveredOrder(t, "order-1", "customer-1")
	f.seedDeliveredOrder(t, "order-2", "customer-2")

	first, _, err := f.svc.Submit(ctx, "customer-1", review.SubmitInput{MealID: "meal-1", Rating: 5})
	require.NoError(t, err)
	second, _, err := f.svc.Submit(ctx, "customer-2", review.SubmitInput{MealID: "meal-1", Rating: 4})
	require.NoError(t, err)

	// Чужой покупатель удалить не может.
	_, err = f.svc.Delete(ctx, domain.Actor{UserID: "customer-3", Role: domain.RoleCustomer}, first.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	// Автор удаляет свой отзыв, агрегат пересчитан.
	rating, err := f.svc.Delete(ctx, domain.Actor{UserID: "customer-2", Role: domain.RoleCustomer}, second.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MealRating{Average: 5, Count: 1}, rating)

	// Администратор удаляет любой отзыв.
	rating, err = f.svc.Delete(ctx, domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}, first.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MealRating{Average: 0, Count: 0}, rating)

	meal, err := f.catalog.GetMeal("meal-1")
	require.NoError(t, err)
	require.Equal(t, float64(0), meal.Rating)
	require.Equal(t, 0, meal.TotalReviews)
}

func TestListMealReviews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedDeliveredOrder(t, "order-1", "customer-1")
	f.seedDeliveredOrder(t, "order-2", "customer-2")

	_, _, err := f.svc.Submit(ctx, "customer-1", review.SubmitInput{MealID: "meal-1", Rating: 5})
	require.NoError(t, err)
	_, _, err = f.svc.Submit(ctx, "customer-2", review.SubmitInput{MealID: "meal-1", Rating: 4})
	require.NoError(t, err)

	reviews, total, rating, err := f.svc.ListMealReviews(ctx, "meal-1", domain.Page{})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, reviews, 2)
	require.Equal(t, domain.MealRating{Average: 4.5, Count: 2}, rating)

	_, _, _, err = f.svc.ListMealReviews(ctx, "meal-ghost", domain.Page{})
	require.ErrorIs(t, err, domain.ErrMealNotFound)
}
