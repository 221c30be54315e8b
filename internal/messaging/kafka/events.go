package kafka

import "time"

// EventType определяет тип события.
type EventType string

const (
	// Order события
	EventTypeOrderPlaced        EventType = "order.placed"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeOrderCancelled     EventType = "order.cancelled"

	// Review события
	EventTypeReviewCreated EventType = "review.created"
	EventTypeReviewUpdated EventType = "review.updated"
	EventTypeReviewDeleted EventType = "review.deleted"
)

// Topics для Kafka.
const (
	TopicOrderEvents     = "foodmarket.order.events"
	TopicReviewEvents    = "foodmarket.review.events"
	TopicDeadLetterQueue = "foodmarket.dlq"
)

// Агрегаты, от имени которых публикуются события.
const (
	AggregateOrder  = "order"
	AggregateReview = "review"
)

// OrderEvent представляет событие жизненного цикла заказа.
type OrderEvent struct {
	EventType  EventType `json:"event_type"`
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	// Metadata несёт произвольный контекст (предыдущий статус, актор и т.п.).
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ReviewEvent представляет событие отзыва вместе со свежим агрегатом рейтинга.
type ReviewEvent struct {
	EventType  EventType `json:"event_type"`
	ReviewID   string    `json:"review_id"`
	MealID     string    `json:"meal_id"`
	CustomerID string    `json:"customer_id"`
	Rating     int       `json:"rating,omitempty"`
	MealAvg    float64   `json:"meal_avg"`
	MealCount  int       `json:"meal_count"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewOrderEvent создает событие заказа.
func NewOrderEvent(eventType EventType, orderID, customerID, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType:  eventType,
		OrderID:    orderID,
		CustomerID: customerID,
		Status:     status,
		Timestamp:  time.Now(),
		Metadata:   metadata,
	}
}

// NewReviewEvent создает событие отзыва.
func NewReviewEvent(eventType EventType, reviewID, mealID, customerID string, rating int, mealAvg float64, mealCount int) *ReviewEvent {
	return &ReviewEvent{
		EventType:  eventType,
		ReviewID:   reviewID,
		MealID:     mealID,
		CustomerID: customerID,
		Rating:     rating,
		MealAvg:    mealAvg,
		MealCount:  mealCount,
		Timestamp:  time.Now(),
	}
}
