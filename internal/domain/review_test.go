package domain_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/foodmarket/internal/domain"
)

func makeReview() domain.Review {
	now := time.Now().UTC()
	return domain.Review{
		ID:         "review-1",
		CustomerID: "customer-1",
		MealID:     "meal-1",
		Rating:     5,
		Comment:    "very good",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestReviewValidateInvariants_Ok(t *testing.T) {
	review := makeReview()
	if errs := review.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestReviewValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(r *domain.Review)
		want error
	}{
		{
			name: "no customer",
			mut:  func(r *domain.Review) { r.CustomerID = "" },
			want: domain.ErrCustomerRequired,
		},
		{
			name: "no meal",
			mut:  func(r *domain.Review) { r.MealID = "" },
			want: domain.ErrLineMealRequired,
		},
		{
			name: "rating too low",
			mut:  func(r *domain.Review) { r.Rating = 0 },
			want: domain.ErrRatingOutOfRange,
		},
		{
			name: "rating too high",
			mut:  func(r *domain.Review) { r.Rating = 6 },
			want: domain.ErrRatingOutOfRange,
		},
		{
			name: "comment too long",
			mut:  func(r *domain.Review) { r.Comment = strings.Repeat("x", domain.CommentMaxLen+1) },
			want: domain.ErrCommentTooLong,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			review := makeReview()
			tc.mut(&review)

			errs := review.ValidateInvariants()
			found := false
			for _, err := range errs {
				if errors.Is(err, tc.want) {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("expected %v among %v", tc.want, errs)
			}
		})
	}
}

func TestComputeRating(t *testing.T) {
	cases := []struct {
		name    string
		ratings []int
		avg     float64
		count   int
	}{
		{name: "empty", ratings: nil, avg: 0, count: 0},
		{name: "single", ratings: []int{4}, avg: 4, count: 1},
		{name: "rounded up", ratings: []int{5, 4, 5}, avg: 4.7, count: 3},
		{name: "exact half", ratings: []int{5, 5, 4, 4}, avg: 4.5, count: 4},
		{name: "after delete", ratings: []int{5}, avg: 5, count: 1},
		{name: "low scores", ratings: []int{1, 2}, avg: 1.5, count: 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := domain.ComputeRating(tc.ratings)
			if got.Average != tc.avg {
				t.Fatalf("average = %v, want %v", got.Average, tc.avg)
			}
			if got.Count != tc.count {
				t.Fatalf("count = %d, want %d", got.Count, tc.count)
			}
		})
	}
}
