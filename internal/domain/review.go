package domain

import (
	"math"
	"time"
)

const (
	// RatingMin и RatingMax задают допустимый диапазон оценки.
	RatingMin = 1
	RatingMax = 5
	// CommentMaxLen ограничивает длину комментария к отзыву.
	CommentMaxLen = 1000
)

// Review — отзыв покупателя на блюдо. На пару (customer, meal)
// существует не более одного отзыва.
type Review struct {
	ID         string
	CustomerID string
	MealID     string
	Rating     int
	Comment    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ValidateInvariants проверяет базовые инварианты отзыва.
func (r *Review) ValidateInvariants() []error {
	var errs []error

	if r.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if r.MealID == "" {
		errs = append(errs, ErrLineMealRequired)
	}
	if r.Rating < RatingMin || r.Rating > RatingMax {
		errs = append(errs, ErrRatingOutOfRange)
	}
	if len(r.Comment) > CommentMaxLen {
		errs = append(errs, ErrCommentTooLong)
	}

	return errs
}

// ComputeRating пересчитывает агрегат рейтинга по набору оценок.
// Среднее округляется до одного знака стандартным округлением, не усечением.
// Пустой набор даёт нулевой агрегат.
func ComputeRating(ratings []int) MealRating {
	if len(ratings) == 0 {
		return MealRating{}
	}

	var sum int
	for _, r := range ratings {
		sum += r
	}
	avg := float64(sum) / float64(len(ratings))
	return MealRating{
		Average: math.Round(avg*10) / 10,
		Count:   len(ratings),
	}
}
