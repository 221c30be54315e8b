package domain

import "time"

// Role определяет роль актора, от имени которого выполняется операция.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleProvider Role = "PROVIDER"
	RoleAdmin    Role = "ADMIN"
)

// Actor описывает аутентифицированного инициатора запроса.
// ProviderID заполняется транспортным слоем один раз на запрос
// и передаётся в движок явно, а не добирается повторными lookups.
type Actor struct {
	UserID     string
	Role       Role
	ProviderID string
}

// Meal — блюдо каталога. Каталогом владеет внешний слой CRUD,
// движки читают его и обновляют только агрегат рейтинга.
type Meal struct {
	ID           string
	ProviderID   string
	Name         string
	PriceMinor   int64
	IsAvailable  bool
	Rating       float64
	TotalReviews int
	CreatedAt    time.Time
}

// ProviderProfile — профиль ресторана-поставщика.
type ProviderProfile struct {
	ID             string
	UserID         string
	RestaurantName string
	// TotalOrders увеличивается ровно один раз на заказ при первом достижении
	// статуса DELIVERED; никогда не уменьшается.
	TotalOrders int
	CreatedAt   time.Time
}

// MealRating — производный агрегат рейтинга блюда.
// Кэш, а не источник правды: всегда пересчитывается из множества отзывов.
type MealRating struct {
	// Average — среднее по всем оценкам, округлённое до одного знака.
	Average float64
	// Count — количество отзывов.
	Count int
}
