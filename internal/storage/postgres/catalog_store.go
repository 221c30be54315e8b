package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/foodmarket/internal/domain"
)

type catalogStore struct {
	db *sql.DB
}

// NewCatalogStore создаёт PostgreSQL-реализацию читающего доступа к каталогу.
// Администрирование каталога остаётся за внешним CRUD-слоем.
func NewCatalogStore(store *Store) domain.CatalogStore {
	return &catalogStore{db: store.DB()}
}

const mealColumns = `id, provider_id, name, price_minor, is_available, rating, total_reviews, created_at`

func (s *catalogStore) GetMeal(id string) (domain.Meal, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	meal, err := scanMeal(s.db.QueryRowContext(ctx, `
		SELECT `+mealColumns+`
		FROM meals
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Meal{}, domain.ErrMealNotFound
		}
		return domain.Meal{}, fmt.Errorf("select meal: %w", err)
	}
	return meal, nil
}

func (s *catalogStore) MealsByIDs(ids []string) ([]domain.Meal, error) {
	if len(ids) == 0 {
		return []domain.Meal{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+mealColumns+`
		FROM meals
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("select meals by ids: %w", err)
	}
	defer rows.Close()

	meals := make([]domain.Meal, 0, len(ids))
	for rows.Next() {
		meal, err := scanMeal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meal row: %w", err)
		}
		meals = append(meals, meal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meal rows: %w", err)
	}

	return meals, nil
}

func (s *catalogStore) ProviderByUser(userID string) (domain.ProviderProfile, error) {
	return s.provider(`user_id = $1`, userID)
}

func (s *catalogStore) GetProvider(id string) (domain.ProviderProfile, error) {
	return s.provider(`id = $1`, id)
}

func (s *catalogStore) provider(where, arg string) (domain.ProviderProfile, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var profile domain.ProviderProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, restaurant_name, total_orders, created_at
		FROM provider_profiles
		WHERE `+where, arg).Scan(
		&profile.ID, &profile.UserID, &profile.RestaurantName,
		&profile.TotalOrders, &profile.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ProviderProfile{}, domain.ErrProviderNotFound
		}
		return domain.ProviderProfile{}, fmt.Errorf("select provider profile: %w", err)
	}
	return profile, nil
}

func scanMeal(row rowScanner) (domain.Meal, error) {
	var meal domain.Meal
	if err := row.Scan(
		&meal.ID, &meal.ProviderID, &meal.Name, &meal.PriceMinor,
		&meal.IsAvailable, &meal.Rating, &meal.TotalReviews, &meal.CreatedAt,
	); err != nil {
		return domain.Meal{}, err
	}
	return meal, nil
}

var _ domain.CatalogStore = (*catalogStore)(nil)
