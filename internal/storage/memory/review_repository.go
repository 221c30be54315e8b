package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/foodmarket/internal/domain"
)

// reviewRepositoryInMemory — in-memory реализация ReviewRepository.
// Мьютекс репозитория сериализует мутации вместе с пересчётом агрегата,
// поэтому агрегат всегда считается по согласованному множеству отзывов.
type reviewRepositoryInMemory struct {
	mu      sync.RWMutex
	items   map[string]domain.Review
	catalog *CatalogStore
}

// NewReviewRepository возвращает in-memory репозиторий отзывов.
func NewReviewRepository(catalog *CatalogStore) domain.ReviewRepository {
	return &reviewRepositoryInMemory{
		items:   make(map[string]domain.Review),
		catalog: catalog,
	}
}

// Create сохраняет отзыв с проверкой уникальности (customer, meal)
// и возвращает пересчитанный агрегат блюда.
func (r *reviewRepositoryInMemory) Create(review domain.Review) (domain.MealRating, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if existing.CustomerID == review.CustomerID && existing.MealID == review.MealID {
			return domain.MealRating{}, domain.ErrReviewExists
		}
	}

	r.items[review.ID] = review
	return r.recalculateLocked(review.MealID)
}

// Get возвращает отзыв или ErrReviewNotFound.
func (r *reviewRepositoryInMemory) Get(id string) (domain.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	review, ok := r.items[id]
	if !ok {
		return domain.Review{}, domain.ErrReviewNotFound
	}
	return review, nil
}

// Update перезаписывает отзыв и возвращает пересчитанный агрегат.
func (r *reviewRepositoryInMemory) Update(review domain.Review) (domain.MealRating, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[review.ID]; !ok {
		return domain.MealRating{}, domain.ErrReviewNotFound
	}
	r.items[review.ID] = review
	return r.recalculateLocked(review.MealID)
}

// Delete удаляет отзыв и возвращает агрегат, пересчитанный без него.
func (r *reviewRepositoryInMemory) Delete(id string) (domain.MealRating, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	review, ok := r.items[id]
	if !ok {
		return domain.MealRating{}, domain.ErrReviewNotFound
	}
	delete(r.items, id)
	return r.recalculateLocked(review.MealID)
}

// ListByMeal возвращает страницу отзывов на блюдо, свежие первыми.
func (r *reviewRepositoryInMemory) ListByMeal(mealID string, page domain.Page) ([]domain.Review, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Review, 0)
	for _, review := range r.items {
		if review.MealID == mealID {
			result = append(result, review)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	total := len(result)
	normalized, offset := page.Normalize()
	if offset >= len(result) {
		return []domain.Review{}, total, nil
	}
	end := offset + normalized.Limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], total, nil
}

// FindByCustomerMeal возвращает отзыв пары (customer, meal) или ErrReviewNotFound.
func (r *reviewRepositoryInMemory) FindByCustomerMeal(customerID, mealID string) (domain.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, review := range r.items {
		if review.CustomerID == customerID && review.MealID == mealID {
			return review, nil
		}
	}
	return domain.Review{}, domain.ErrReviewNotFound
}

// recalculateLocked пересчитывает агрегат по текущему множеству отзывов блюда
// и записывает его в каталог. Вызывается строго под мьютексом записи.
func (r *reviewRepositoryInMemory) recalculateLocked(mealID string) (domain.MealRating, error) {
	ratings := make([]int, 0)
	for _, review := range r.items {
		if review.MealID == mealID {
			ratings = append(ratings, review.Rating)
		}
	}

	rating := domain.ComputeRating(ratings)
	if r.catalog != nil {
		if err := r.catalog.setMealRating(mealID, rating); err != nil {
			return domain.MealRating{}, err
		}
	}
	return rating, nil
}

var _ domain.ReviewRepository = (*reviewRepositoryInMemory)(nil)
