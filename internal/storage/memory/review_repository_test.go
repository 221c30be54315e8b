package memory

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/foodmarket/internal/domain"
)

func testReview(id, customerID, mealID string, rating int, createdAt time.Time) domain.Review {
	return domain.Review{
		ID:         id,
		CustomerID: customerID,
		MealID:     mealID,
		Rating:     rating,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

func TestReviewRepository_CreateRecalculatesRating(t *testing.T) {
	catalog := seedCatalog()
	repo := NewReviewRepository(catalog)
	now := time.Now().UTC()

	rating, err := repo.Create(testReview("review-1", "customer-1", "meal-1", 5, now))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rating.Average != 5 || rating.Count != 1 {
		t.Fatalf("rating = %+v, want 5/1", rating)
	}

	rating, err = repo.Create(testReview("review-2", "customer-2", "meal-1", 4, now.Add(time.Minute)))
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if rating.Average != 4.5 || rating.Count != 2 {
		t.Fatalf("rating = %+v, want 4.5/2", rating)
	}

	// Агрегат дублируется в каталог.
	meal, err := catalog.GetMeal("meal-1")
	if err != nil {
		t.Fatalf("get meal: %v", err)
	}
	if meal.Rating != 4.5 || meal.TotalReviews != 2 {
		t.Fatalf("meal aggregate = %v/%d, want 4.5/2", meal.Rating, meal.TotalReviews)
	}
}

func TestReviewRepository_CreateDuplicateCustomerMeal(t *testing.T) {
	repo := NewReviewRepository(seedCatalog())
	now := time.Now().UTC()

	if _, err := repo.Create(testReview("review-1", "customer-1", "meal-1", 5, now)); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := repo.Create(testReview("review-2", "customer-1", "meal-1", 3, now))
	if !errors.Is(err, domain.ErrReviewExists) {
		t.Fatalf("expected ErrReviewExists, got %v", err)
	}
}

func TestReviewRepository_UpdateRecalculatesRating(t *testing.T) {
	catalog := seedCatalog()
	repo := NewReviewRepository(catalog)
	now := time.Now().UTC()

	review := testReview("review-1", "customer-1", "meal-1", 2, now)
	if _, err := repo.Create(review); err != nil {
		t.Fatalf("create: %v", err)
	}

	review.Rating = 5
	rating, err := repo.Update(review)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if rating.Average != 5 || rating.Count != 1 {
		t.Fatalf("rating = %+v, want 5/1", rating)
	}

	missing := testReview("review-missing", "customer-1", "meal-1", 3, now)
	if _, err := repo.Update(missing); !errors.Is(err, domain.ErrReviewNotFound) {
		t.Fatalf("expected ErrReviewNotFound, got %v", err)
	}
}

func TestReviewRepository_DeleteRecalculatesRating(t *testing.T) {
	catalog := seedCatalog()
	repo := NewReviewRepository(catalog)
	now := time.Now().UTC()

	if _, err := repo.Create(testReview("review-1", "customer-1", "meal-1", 5, now)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Create(testReview("review-2", "customer-2", "meal-1", 4, now)); err != nil {
		t.Fatalf("create: %v", err)
	}

	rating, err := repo.Delete("review-2")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rating.Average != 5 || rating.Count != 1 {
		t.Fatalf("rating = %+v, want 5/1", rating)
	}

	// Удаление последнего отзыва обнуляет агрегат.
	rating, err = repo.Delete("review-1")
	if err != nil {
		t.Fatalf("delete last: %v", err)
	}
	if rating.Average != 0 || rating.Count != 0 {
		t.Fatalf("rating = %+v, want 0/0", rating)
	}

	meal, _ := catalog.GetMeal("meal-1")
	if meal.Rating != 0 || meal.TotalReviews != 0 {
		t.Fatalf("meal aggregate = %v/%d, want 0/0", meal.Rating, meal.TotalReviews)
	}

	if _, err := repo.Delete("review-1"); !errors.Is(err, domain.ErrReviewNotFound) {
		t.Fatalf("expected ErrReviewNotFound, got %v", err)
	}
}

func TestReviewRepository_ListByMeal_Pagination(t *testing.T) {
	repo := NewReviewRepository(seedCatalog())
	base := time.Now().UTC()

	for i := 0; i < 12; i++ {
		review := testReview(
			fmt.Sprintf("review-%02d", i),
			fmt.Sprintf("customer-%02d", i),
			"meal-1",
			5,
			base.Add(time.Duration(i)*time.Minute),
		)
		if _, err := repo.Create(review); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	reviews, total, err := repo.ListByMeal("meal-1", domain.Page{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 12 || len(reviews) != domain.DefaultPageLimit {
		t.Fatalf("total=%d len=%d, want 12/%d", total, len(reviews), domain.DefaultPageLimit)
	}
	if reviews[0].ID != "review-11" {
		t.Fatalf("newest review must come first, got %s", reviews[0].ID)
	}

	reviews, total, err = repo.ListByMeal("meal-1", domain.Page{Number: 2})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if total != 12 || len(reviews) != 2 {
		t.Fatalf("page 2: total=%d len=%d, want 12/2", total, len(reviews))
	}

	reviews, total, err = repo.ListByMeal("meal-other", domain.Page{})
	if err != nil {
		t.Fatalf("list other: %v", err)
	}
	if total != 0 || len(reviews) != 0 {
		t.Fatalf("other meal must have no reviews")
	}
}

func TestReviewRepository_FindByCustomerMeal(t *testing.T) {
	repo := NewReviewRepository(seedCatalog())
	now := time.Now().UTC()

	if _, err := repo.Create(testReview("review-1", "customer-1", "meal-1", 4, now)); err != nil {
		t.Fatalf("create: %v", err)
	}

	found, err := repo.FindByCustomerMeal("customer-1", "meal-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.ID != "review-1" {
		t.Fatalf("found %s, want review-1", found.ID)
	}

	if _, err := repo.FindByCustomerMeal("customer-2", "meal-1"); !errors.Is(err, domain.ErrReviewNotFound) {
		t.Fatalf("expected ErrReviewNotFound, got %v", err)
	}
}
