package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/vladislavdragonenkov/foodmarket/internal/domain"
)

type reviewRepository struct {
	db *sql.DB
}

// NewReviewRepository создаёт PostgreSQL-реализацию ReviewRepository.
func NewReviewRepository(store *Store) domain.ReviewRepository {
	return &reviewRepository{db: store.DB()}
}

// Create сохраняет отзыв и пересчитывает агрегат блюда в одной транзакции.
// Блокировка строки блюда сериализует конкурирующие мутации отзывов одного
// блюда, поэтому агрегат всегда считается по полному множеству.
func (r *reviewRepository) Create(review domain.Review) (domain.MealRating, error) {
	return r.mutate(review.MealID, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reviews (id, customer_id, meal_id, rating, comment, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`,
			review.ID, review.CustomerID, review.MealID, review.Rating,
			review.Comment, review.CreatedAt, review.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrReviewExists
			}
			return fmt.Errorf("insert review: %w", err)
		}
		return nil
	})
}

func (r *reviewRepository) Get(id string) (domain.Review, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	review, err := scanReview(r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, meal_id, rating, comment, created_at, updated_at
		FROM reviews
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Review{}, domain.ErrReviewNotFound
		}
		return domain.Review{}, fmt.Errorf("select review: %w", err)
	}
	return review, nil
}

// Update перезаписывает rating/comment и пересчитывает агрегат в той же транзакции.
func (r *reviewRepository) Update(review domain.Review) (domain.MealRating, error) {
	return r.mutate(review.MealID, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE reviews
			SET rating = $1, comment = $2, updated_at = $3
			WHERE id = $4
		`, review.Rating, review.Comment, review.UpdatedAt, review.ID)
		if err != nil {
			return fmt.Errorf("update review: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return domain.ErrReviewNotFound
		}
		return nil
	})
}

// Delete удаляет отзыв и пересчитывает агрегат без него.
func (r *reviewRepository) Delete(id string) (domain.MealRating, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var mealID string
	err := r.db.QueryRowContext(ctx, `SELECT meal_id FROM reviews WHERE id = $1`, id).Scan(&mealID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.MealRating{}, domain.ErrReviewNotFound
		}
		return domain.MealRating{}, fmt.Errorf("select review meal: %w", err)
	}

	return r.mutate(mealID, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete review: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return domain.ErrReviewNotFound
		}
		return nil
	})
}

func (r *reviewRepository) ListByMeal(mealID string, page domain.Page) ([]domain.Review, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reviews WHERE meal_id = $1`, mealID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}

	normalized, offset := page.Normalize()
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, meal_id, rating, comment, created_at, updated_at
		FROM reviews
		WHERE meal_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, mealID, normalized.Limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]domain.Review, 0)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	return reviews, total, nil
}

func (r *reviewRepository) FindByCustomerMeal(customerID, mealID string) (domain.Review, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	review, err := scanReview(r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, meal_id, rating, comment, created_at, updated_at
		FROM reviews
		WHERE customer_id = $1 AND meal_id = $2
	`, customerID, mealID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Review{}, domain.ErrReviewNotFound
		}
		return domain.Review{}, fmt.Errorf("select review by customer/meal: %w", err)
	}
	return review, nil
}

// mutate выполняет мутацию отзывов и пересчёт агрегата под блокировкой
// строки блюда. FOR UPDATE гарантирует, что два конкурирующих изменения
// отзывов одного блюда сериализуются и ни одно не увидит частичный набор.
func (r *reviewRepository) mutate(mealID string, op func(ctx context.Context, tx *sql.Tx) error) (domain.MealRating, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.MealRating{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked string
	err = tx.QueryRowContext(ctx, `SELECT id FROM meals WHERE id = $1 FOR UPDATE`, mealID).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrMealNotFound
			return domain.MealRating{}, err
		}
		return domain.MealRating{}, fmt.Errorf("lock meal row: %w", err)
	}

	if err = op(ctx, tx); err != nil {
		return domain.MealRating{}, err
	}

	var (
		sum   int64
		count int
	)
	if err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(rating), 0), COUNT(*)
		FROM reviews
		WHERE meal_id = $1
	`, mealID).Scan(&sum, &count); err != nil {
		return domain.MealRating{}, fmt.Errorf("aggregate reviews: %w", err)
	}

	rating := domain.MealRating{}
	if count > 0 {
		rating = domain.MealRating{
			Average: math.Round(float64(sum)/float64(count)*10) / 10,
			Count:   count,
		}
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE meals
		SET rating = $1, total_reviews = $2
		WHERE id = $3
	`, rating.Average, rating.Count, mealID); err != nil {
		return domain.MealRating{}, fmt.Errorf("update meal rating: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return domain.MealRating{}, fmt.Errorf("commit review mutation: %w", err)
	}

	return rating, nil
}

func scanReview(row rowScanner) (domain.Review, error) {
	var review domain.Review
	if err := row.Scan(
		&review.ID, &review.CustomerID, &review.MealID, &review.Rating,
		&review.Comment, &review.CreatedAt, &review.UpdatedAt,
	); err != nil {
		return domain.Review{}, err
	}
	return review, nil
}

var _ domain.ReviewRepository = (*reviewRepository)(nil)
