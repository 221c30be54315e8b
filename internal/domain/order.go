package domain

import "time"

// OrderStatus описывает жизненный цикл заказа на маркетплейсе.
type OrderStatus string

const (
	// OrderStatusPlaced — заказ оформлен покупателем, ресторан ещё не принял его в работу.
	OrderStatusPlaced OrderStatus = "PLACED"
	// OrderStatusPreparing — ресторан готовит заказ.
	OrderStatusPreparing OrderStatus = "PREPARING"
	// OrderStatusReady — заказ готов к выдаче.
	OrderStatusReady OrderStatus = "READY"
	// OrderStatusDelivered — заказ доставлен покупателю (терминальный успех).
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled — заказ отменён до начала приготовления (терминальный отказ).
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// OrderTransitions — единственный источник правды о допустимых переходах статусов.
// Терминальные статусы (DELIVERED, CANCELLED) исходящих рёбер не имеют.
var OrderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPlaced:    {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing: {OrderStatusReady},
	OrderStatusReady:     {OrderStatusDelivered},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

// AllowedNext возвращает допустимые следующие статусы для текущего.
// Для неизвестного статуса возвращается пустой срез.
func AllowedNext(from OrderStatus) []OrderStatus {
	next := OrderTransitions[from]
	result := make([]OrderStatus, len(next))
	copy(result, next)
	return result
}

// CanTransition проверяет легальность перехода from → to по таблице переходов.
func CanTransition(from, to OrderStatus) bool {
	for _, allowed := range OrderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal сообщает, является ли статус терминальным.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// IsValid проверяет, что статус входит в известный набор.
func (s OrderStatus) IsValid() bool {
	_, ok := OrderTransitions[s]
	return ok
}

// OrderLine представляет одну позицию заказа.
type OrderLine struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID string
	// MealID — идентификатор блюда в каталоге.
	MealID string
	// ProviderID — снапшот владельца блюда; по нему проверяются права ресторана на заказ.
	ProviderID string
	// Name — денормализованное название блюда на момент заказа (для отображения).
	Name string
	// Qty — количество единиц блюда.
	Qty int32
	// PriceMinor — снапшот цены за единицу в минимальных денежных единицах.
	// Последующие изменения цены в каталоге исторические суммы не трогают.
	PriceMinor int64
	// CreatedAt фиксирует момент добавления позиции в заказ.
	CreatedAt time.Time
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID              string
	CustomerID      string
	Status          OrderStatus
	TotalMinor      int64
	DeliveryAddress string
	DeliveryCity    string
	DeliveryPhone   string
	Note            string
	Lines           []OrderLine
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Временные метки переходов. Каждая выставляется не более одного раза,
	// строго в момент соответствующего перехода.
	PreparingAt *time.Time
	ReadyAt     *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
}

// ApplyStatus переводит заказ в новый статус и проставляет метку перехода.
// Легальность перехода проверяется по таблице OrderTransitions.
func (o *Order) ApplyStatus(to OrderStatus, now time.Time) error {
	if !CanTransition(o.Status, to) {
		return &InvalidTransitionError{
			From:      o.Status,
			Requested: to,
			Allowed:   AllowedNext(o.Status),
		}
	}

	o.Status = to
	o.UpdatedAt = now
	switch to {
	case OrderStatusPreparing:
		o.PreparingAt = &now
	case OrderStatusReady:
		o.ReadyAt = &now
	case OrderStatusDelivered:
		o.DeliveredAt = &now
	case OrderStatusCancelled:
		o.CancelledAt = &now
	}
	return nil
}

// HasProviderLine проверяет, есть ли в заказе хотя бы одна позиция указанного ресторана.
func (o *Order) HasProviderLine(providerID string) bool {
	for _, line := range o.Lines {
		if line.ProviderID == providerID {
			return true
		}
	}
	return false
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if o.DeliveryAddress == "" {
		errs = append(errs, ErrDeliveryAddressRequired)
	}
	if len(o.Lines) == 0 {
		errs = append(errs, ErrLinesRequired)
	}
	if !o.Status.IsValid() {
		errs = append(errs, ErrStatusUnknown)
	}
	if o.TotalMinor < 0 {
		errs = append(errs, ErrTotalNegative)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	var calc int64
	for _, line := range o.Lines {
		if line.Qty <= 0 {
			errs = append(errs, ErrLineQtyInvalid)
		}
		if line.PriceMinor < 0 {
			errs = append(errs, ErrLinePriceInvalid)
		}
		if line.MealID == "" {
			errs = append(errs, ErrLineMealRequired)
		}
		calc += int64(line.Qty) * line.PriceMinor
	}
	if calc != o.TotalMinor {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}
