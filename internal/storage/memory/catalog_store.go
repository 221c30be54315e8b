package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/foodmarket/internal/domain"
)

// CatalogStore — in-memory каталог блюд и профилей ресторанов
// для локальной разработки и тестов.
type CatalogStore struct {
	mu        sync.RWMutex
	meals     map[string]domain.Meal
	providers map[string]domain.ProviderProfile
}

// NewCatalogStore создаёт пустой in-memory каталог.
func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		meals:     make(map[string]domain.Meal),
		providers: make(map[string]domain.ProviderProfile),
	}
}

// PutMeal добавляет или перезаписывает блюдо (seed для dev/тестов).
func (s *CatalogStore) PutMeal(meal domain.Meal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meals[meal.ID] = meal
}

// PutProvider добавляет или перезаписывает профиль ресторана.
func (s *CatalogStore) PutProvider(profile domain.ProviderProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[profile.ID] = profile
}

// GetMeal возвращает блюдо или ErrMealNotFound.
func (s *CatalogStore) GetMeal(id string) (domain.Meal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meal, ok := s.meals[id]
	if !ok {
		return domain.Meal{}, domain.ErrMealNotFound
	}
	return meal, nil
}

// MealsByIDs возвращает найденные блюда; отсутствующие пропускаются.
func (s *CatalogStore) MealsByIDs(ids []string) ([]domain.Meal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Meal, 0, len(ids))
	for _, id := range ids {
		if meal, ok := s.meals[id]; ok {
			result = append(result, meal)
		}
	}
	return result, nil
}

// ProviderByUser возвращает профиль ресторана по владельцу-пользователю.
func (s *CatalogStore) ProviderByUser(userID string) (domain.ProviderProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, profile := range s.providers {
		if profile.UserID == userID {
			return profile, nil
		}
	}
	return domain.ProviderProfile{}, domain.ErrProviderNotFound
}

// GetProvider возвращает профиль ресторана или ErrProviderNotFound.
func (s *CatalogStore) GetProvider(id string) (domain.ProviderProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.providers[id]
	if !ok {
		return domain.ProviderProfile{}, domain.ErrProviderNotFound
	}
	return profile, nil
}

// setMealRating перезаписывает агрегат рейтинга блюда.
// Вызывается репозиторием отзывов под его мьютексом.
func (s *CatalogStore) setMealRating(mealID string, rating domain.MealRating) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meal, ok := s.meals[mealID]
	if !ok {
		return domain.ErrMealNotFound
	}
	meal.Rating = rating.Average
	meal.TotalReviews = rating.Count
	s.meals[mealID] = meal
	return nil
}

// creditProviderOrders увеличивает счётчик доставленных заказов ресторана на 1.
// Вызывается репозиторием заказов в рамках его критической секции.
func (s *CatalogStore) creditProviderOrders(providerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.providers[providerID]
	if !ok {
		return domain.ErrProviderNotFound
	}
	profile.TotalOrders++
	s.providers[providerID] = profile
	return nil
}

var _ domain.CatalogStore = (*CatalogStore)(nil)
