package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/foodmarket/internal/domain"
)

// orderRepositoryInMemory — простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu      sync.RWMutex
	items   map[string]domain.Order
	catalog *CatalogStore
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
// Каталог нужен для атомарного инкремента счётчика заказов ресторана.
func NewOrderRepository(catalog *CatalogStore) domain.OrderRepository {
	return &orderRepositoryInMemory{
		items:   make(map[string]domain.Order),
		catalog: catalog,
	}
}

// Create сохраняет новый заказ, если ID ещё не занят.
func (r *orderRepositoryInMemory) Create(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.ErrOrderVersionConflict
	}
	// Сохраняем копию позиций, чтобы избежать непредсказуемых мутаций извне.
	r.items[order.ID] = cloneOrder(order)
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// ListByCustomer возвращает страницу заказов покупателя и общее количество.
func (r *orderRepositoryInMemory) ListByCustomer(customerID string, filter domain.OrderFilter) ([]domain.Order, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.pageLocked(filter, func(order domain.Order) bool {
		return order.CustomerID == customerID
	})
}

// ListByProvider возвращает страницу заказов с позициями указанного ресторана.
func (r *orderRepositoryInMemory) ListByProvider(providerID string, filter domain.OrderFilter) ([]domain.Order, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.pageLocked(filter, func(order domain.Order) bool {
		return order.HasProviderLine(providerID)
	})
}

func (r *orderRepositoryInMemory) pageLocked(filter domain.OrderFilter, match func(domain.Order) bool) ([]domain.Order, int, error) {
	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if !match(order) {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	// Свежие заказы первыми, ID как tiebreaker для стабильного порядка.
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	total := len(result)
	page, offset := filter.Page.Normalize()
	if offset >= len(result) {
		return []domain.Order{}, total, nil
	}
	end := offset + page.Limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], total, nil
}

// SaveStatus перезаписывает заказ, проверяя версию (optimistic locking).
// Непустой creditProviderID увеличивает счётчик заказов ресторана
// в той же критической секции, что и запись статуса.
func (r *orderRepositoryInMemory) SaveStatus(order domain.Order, creditProviderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}

	if creditProviderID != "" && r.catalog != nil {
		if err := r.catalog.creditProviderOrders(creditProviderID); err != nil {
			return err
		}
	}

	order.Version++
	r.items[order.ID] = cloneOrder(order)
	return nil
}

// HasDeliveredMeal сообщает, есть ли у покупателя доставленный заказ с блюдом.
func (r *orderRepositoryInMemory) HasDeliveredMeal(customerID, mealID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, order := range r.items {
		if order.CustomerID != customerID || order.Status != domain.OrderStatusDelivered {
			continue
		}
		for _, line := range order.Lines {
			if line.MealID == mealID {
				return true, nil
			}
		}
	}
	return false, nil
}

func cloneOrder(order domain.Order) domain.Order {
	clone := order
	clone.Lines = make([]domain.OrderLine, len(order.Lines))
	copy(clone.Lines, order.Lines)
	return clone
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
