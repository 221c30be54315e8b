package domain

const (
	// DefaultPageLimit применяется, когда клиент не задал размер страницы.
	DefaultPageLimit = 10
	// MaxPageLimit ограничивает размер страницы сверху.
	MaxPageLimit = 100
)

// Page задаёт параметры постраничной выборки.
type Page struct {
	Number int
	Limit  int
}

// Normalize приводит параметры к допустимым значениям и возвращает offset.
func (p Page) Normalize() (Page, int) {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p, (p.Number - 1) * p.Limit
}

// OrderFilter задаёт фильтр списочных выборок заказов.
type OrderFilter struct {
	// Status, если непустой, ограничивает выборку одним статусом.
	Status OrderStatus
	Page   Page
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с позициями.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// ListByCustomer возвращает страницу заказов покупателя и общее количество.
	ListByCustomer(customerID string, filter OrderFilter) ([]Order, int, error)
	// ListByProvider возвращает страницу заказов, содержащих позиции ресторана,
	// и общее количество.
	ListByProvider(providerID string, filter OrderFilter) ([]Order, int, error)
	// SaveStatus применяет переход статуса с учётом optimistic locking.
	// Непустой creditProviderID атомарно, в той же транзакции, увеличивает
	// счётчик total_orders этого ресторана.
	SaveStatus(order Order, creditProviderID string) error
	// HasDeliveredMeal сообщает, есть ли у покупателя доставленный заказ,
	// содержащий указанное блюдо.
	HasDeliveredMeal(customerID, mealID string) (bool, error)
}

// ReviewRepository описывает требования к хранилищу отзывов.
// Каждая мутация пересчитывает агрегат рейтинга блюда атомарно с записью:
// агрегат никогда не виден рассчитанным по частичному множеству отзывов.
type ReviewRepository interface {
	// Create сохраняет отзыв и возвращает свежий агрегат блюда.
	// Возвращает ErrReviewExists при нарушении уникальности (customer, meal).
	Create(review Review) (MealRating, error)
	// Get возвращает отзыв или ErrReviewNotFound.
	Get(id string) (Review, error)
	// Update перезаписывает rating/comment отзыва и возвращает свежий агрегат.
	Update(review Review) (MealRating, error)
	// Delete удаляет отзыв и возвращает агрегат, пересчитанный без него.
	Delete(id string) (MealRating, error)
	// ListByMeal возвращает страницу отзывов на блюдо и общее количество.
	ListByMeal(mealID string, page Page) ([]Review, int, error)
	// FindByCustomerMeal возвращает отзыв пары (customer, meal) или ErrReviewNotFound.
	FindByCustomerMeal(customerID, mealID string) (Review, error)
}

// CatalogStore — читающий доступ к каталогу блюд и профилей ресторанов.
// Каталогом владеет внешний CRUD-слой; движки его не администрируют.
type CatalogStore interface {
	// GetMeal возвращает блюдо или ErrMealNotFound.
	GetMeal(id string) (Meal, error)
	// MealsByIDs возвращает найденные блюда; отсутствующие просто не попадают
	// в результат, решение об ошибке принимает вызывающий.
	MealsByIDs(ids []string) ([]Meal, error)
	// ProviderByUser возвращает профиль ресторана по владельцу-пользователю
	// или ErrProviderNotFound.
	ProviderByUser(userID string) (ProviderProfile, error)
	// GetProvider возвращает профиль ресторана или ErrProviderNotFound.
	GetProvider(id string) (ProviderProfile, error)
}
