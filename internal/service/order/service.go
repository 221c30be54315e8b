package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodmarket/internal/domain"
	"github.com/vladislavdragonenkov/foodmarket/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/foodmarket/internal/metrics"
)

// maxTransitionAttempts ограничивает число повторов при конфликте версий.
// Проигравший гонку переход перечитывает заказ и валидируется заново,
// поэтому против уже терминального статуса он честно падает, а не зависает.
const maxTransitionAttempts = 3

// LineInput — позиция заказа в запросе покупателя.
type LineInput struct {
	MealID string
	Qty    int32
}

// PlaceOrderInput — данные оформления заказа.
type PlaceOrderInput struct {
	Lines           []LineInput
	DeliveryAddress string
	DeliveryCity    string
	DeliveryPhone   string
	Note            string
}

// Service — движок жизненного цикла заказа: создание, переходы статусов,
// авторизация по ролям и кредитование счётчика ресторана при доставке.
type Service struct {
	orders  domain.OrderRepository
	catalog domain.CatalogStore
	outbox  domain.OutboxRepository
	logger  *log.Entry
	metrics *metrics.OrderMetrics
}

// NewService создаёт рабочий экземпляр движка.
func NewService(
	orders domain.OrderRepository,
	catalog domain.CatalogStore,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "order-service")
	}
	return &Service{
		orders:  orders,
		catalog: catalog,
		outbox:  outbox,
		logger:  logger,
		metrics: metrics.NewOrderMetrics(),
	}
}

// NewServiceWithoutMetrics создаёт движок без метрик (для тестов).
func NewServiceWithoutMetrics(
	orders domain.OrderRepository,
	catalog domain.CatalogStore,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Service {
	svc := NewService(orders, catalog, outbox, logger)
	svc.metrics = nil
	return svc
}

// PlaceOrder оформляет заказ покупателя.
// Все блюда должны существовать и быть доступными; цены и названия
// снапшотятся в позиции, сумма считается один раз и больше не пересчитывается.
func (s *Service) PlaceOrder(_ context.Context, customerID string, input PlaceOrderInput) (domain.Order, error) {
	if customerID == "" {
		return domain.Order{}, domain.ErrCustomerRequired
	}
	if len(input.Lines) == 0 {
		return domain.Order{}, domain.ErrLinesRequired
	}
	for _, line := range input.Lines {
		if line.Qty <= 0 {
			return domain.Order{}, domain.ErrLineQtyInvalid
		}
	}

	ids := make([]string, 0, len(input.Lines))
	for _, line := range input.Lines {
		ids = append(ids, line.MealID)
	}

	meals, err := s.catalog.MealsByIDs(ids)
	if err != nil {
		return domain.Order{}, fmt.Errorf("load meals: %w", err)
	}
	byID := make(map[string]domain.Meal, len(meals))
	for _, meal := range meals {
		byID[meal.ID] = meal
	}

	missing := make([]string, 0)
	unavailable := make([]string, 0)
	for _, id := range ids {
		meal, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if !meal.IsAvailable {
			unavailable = append(unavailable, meal.Name)
		}
	}
	if len(missing) > 0 {
		return domain.Order{}, &domain.MealsNotFoundError{IDs: missing}
	}
	if len(unavailable) > 0 {
		return domain.Order{}, &domain.MealsUnavailableError{Names: unavailable}
	}

	now := time.Now().UTC()
	lines := make([]domain.OrderLine, 0, len(input.Lines))
	var total int64
	for _, line := range input.Lines {
		meal := byID[line.MealID]
		lines = append(lines, domain.OrderLine{
			ID:         uuid.NewString(),
			MealID:     meal.ID,
			ProviderID: meal.ProviderID,
			Name:       meal.Name,
			Qty:        line.Qty,
			PriceMinor: meal.PriceMinor,
			CreatedAt:  now,
		})
		total += int64(line.Qty) * meal.PriceMinor
	}

	order := domain.Order{
		ID:              uuid.NewString(),
		CustomerID:      customerID,
		Status:          domain.OrderStatusPlaced,
		TotalMinor:      total,
		DeliveryAddress: input.DeliveryAddress,
		DeliveryCity:    input.DeliveryCity,
		DeliveryPhone:   input.DeliveryPhone,
		Note:            input.Note,
		Lines:           lines,
		Version:         0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errors.Join(errs...)
	}

	if err := s.orders.Create(order); err != nil {
		s.logger.WithError(err).Error("failed to create order")
		return domain.Order{}, fmt.Errorf("persist order: %w", err)
	}

	s.metrics.RecordOrderPlaced()
	s.emitOrderEvent(kafka.EventTypeOrderPlaced, order, nil)

	return order, nil
}

// GetOrder возвращает заказ, если актор имеет право его видеть:
// покупатель-владелец, ресторан с позицией в заказе или администратор.
func (s *Service) GetOrder(_ context.Context, actor domain.Actor, orderID string) (domain.Order, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	switch actor.Role {
	case domain.RoleAdmin:
		return order, nil
	case domain.RoleCustomer:
		if order.CustomerID == actor.UserID {
			return order, nil
		}
	case domain.RoleProvider:
		if actor.ProviderID != "" && order.HasProviderLine(actor.ProviderID) {
			return order, nil
		}
	}

	s.metrics.RecordForbidden()
	return domain.Order{}, domain.ErrForbidden
}

// ListCustomerOrders возвращает страницу заказов покупателя и общее количество.
func (s *Service) ListCustomerOrders(_ context.Context, customerID string, filter domain.OrderFilter) ([]domain.Order, int, error) {
	return s.orders.ListByCustomer(customerID, filter)
}

// ListProviderOrders возвращает страницу заказов с позициями ресторана.
func (s *Service) ListProviderOrders(_ context.Context, providerID string, filter domain.OrderFilter) ([]domain.Order, int, error) {
	return s.orders.ListByProvider(providerID, filter)
}

// AdvanceStatus применяет переход статуса от имени актора.
// Легальность перехода решает таблица domain.OrderTransitions — одинаково
// для ресторана, покупателя и администратора.
func (s *Service) AdvanceStatus(_ context.Context, actor domain.Actor, orderID string, requested domain.OrderStatus) (domain.Order, error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordTransitionDuration(time.Since(start))
	}()

	order, err := s.transition(actor, orderID, requested)
	if err != nil {
		return domain.Order{}, err
	}

	eventType := kafka.EventTypeOrderStatusChanged
	if requested == domain.OrderStatusCancelled {
		eventType = kafka.EventTypeOrderCancelled
	}
	s.emitOrderEvent(eventType, order, map[string]interface{}{
		"actor_id":   actor.UserID,
		"actor_role": string(actor.Role),
	})

	return order, nil
}

// CancelOrder — покупательский вариант перехода, ограниченный ребром
// PLACED → CANCELLED и владельцем заказа.
func (s *Service) CancelOrder(ctx context.Context, customerID, orderID string) (domain.Order, error) {
	actor := domain.Actor{UserID: customerID, Role: domain.RoleCustomer}
	return s.AdvanceStatus(ctx, actor, orderID, domain.OrderStatusCancelled)
}

// transition загружает заказ, авторизует актора, валидирует переход и
// сохраняет его с optimistic locking. При конфликте версий заказ
// перечитывается и проверяется заново: проигравший гонку видит уже
// обновлённый статус и получает InvalidTransition, а не порчу состояния.
func (s *Service) transition(actor domain.Actor, orderID string, requested domain.OrderStatus) (domain.Order, error) {
	var lastErr error

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		order, err := s.orders.Get(orderID)
		if err != nil {
			return domain.Order{}, err
		}

		if err := s.authorizeTransition(actor, &order, requested); err != nil {
			s.metrics.RecordForbidden()
			return domain.Order{}, err
		}

		now := time.Now().UTC()
		if err := order.ApplyStatus(requested, now); err != nil {
			s.metrics.RecordInvalidTransition()
			return domain.Order{}, err
		}

		creditProviderID := ""
		if requested == domain.OrderStatusDelivered {
			creditProviderID = s.creditTarget(actor, order)
		}

		err = s.orders.SaveStatus(order, creditProviderID)
		if err == nil {
			order.Version++
			s.metrics.RecordTransition(string(requested))
			s.logger.WithFields(log.Fields{
				"order_id": order.ID,
				"status":   order.Status,
			}).Info("order status advanced")
			return order, nil
		}
		if !domain.IsVersionConflict(err) {
			s.logger.WithError(err).WithField("order_id", orderID).Error("failed to save order status")
			return domain.Order{}, fmt.Errorf("save order status: %w", err)
		}

		// Конкурирующий переход успел первым; перечитываем и валидируем заново.
		lastErr = err
	}

	return domain.Order{}, fmt.Errorf("transition retries exhausted: %w", lastErr)
}

// authorizeTransition реализует перекрёстную авторизацию по ролям.
func (s *Service) authorizeTransition(actor domain.Actor, order *domain.Order, requested domain.OrderStatus) error {
	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleProvider:
		if actor.ProviderID == "" || !order.HasProviderLine(actor.ProviderID) {
			return domain.ErrForbidden
		}
		return nil
	case domain.RoleCustomer:
		// Покупателю доступна единственная операция: отмена собственного
		// заказа. Всё остальное запрещено независимо от текущего статуса.
		if requested != domain.OrderStatusCancelled || order.CustomerID != actor.UserID {
			return domain.ErrForbidden
		}
		return nil
	default:
		return domain.ErrForbidden
	}
}

// creditTarget выбирает ресторан, которому засчитывается доставленный заказ:
// действующий ресторан, либо владелец первой позиции для админского перехода.
func (s *Service) creditTarget(actor domain.Actor, order domain.Order) string {
	if actor.ProviderID != "" {
		return actor.ProviderID
	}
	if len(order.Lines) > 0 {
		return order.Lines[0].ProviderID
	}
	return ""
}

func (s *Service) emitOrderEvent(eventType kafka.EventType, order domain.Order, metadata map[string]interface{}) {
	if s.outbox == nil {
		return
	}

	event := kafka.NewOrderEvent(eventType, order.ID, order.CustomerID, string(order.Status), metadata)
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to marshal order event")
		return
	}

	if _, err := s.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: kafka.AggregateOrder,
		AggregateID:   order.ID,
		EventType:     string(eventType),
		Payload:       payload,
	}); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to enqueue order event")
	}
}
