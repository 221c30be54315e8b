package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Ошибка отсутствующего идентификатора покупателя.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствующего адреса доставки.
	ErrDeliveryAddressRequired = errors.New("delivery address is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrLinesRequired = errors.New("order must contain at least one line")
	// Ошибка отрицательной суммы заказа.
	ErrTotalNegative = errors.New("total_minor must be non-negative")
	// Ошибка при некорректном количестве блюда (<= 0).
	ErrLineQtyInvalid = errors.New("line qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrLinePriceInvalid = errors.New("line price must be non-negative")
	// Ошибка отсутствующего идентификатора блюда в позиции.
	ErrLineMealRequired = errors.New("line meal_id is required")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrTotalMismatch = errors.New("order total does not match lines sum")
	// Ошибка неизвестного статуса заказа.
	ErrStatusUnknown = errors.New("order status is unknown")
	// Ошибка рейтинга вне диапазона 1..5.
	ErrRatingOutOfRange = errors.New("rating must be between 1 and 5")
	// Ошибка слишком длинного комментария к отзыву.
	ErrCommentTooLong = errors.New("review comment is too long")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrMealNotFound возвращается, если блюдо отсутствует в каталоге.
	ErrMealNotFound = errors.New("meal not found")
	// ErrProviderNotFound возвращается, если профиль ресторана не найден.
	ErrProviderNotFound = errors.New("provider profile not found")
	// ErrReviewNotFound возвращается, если отзыв не найден.
	ErrReviewNotFound = errors.New("review not found")

	// ErrForbidden — действие запрещено для данного актора над данным ресурсом.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition — нарушение графа переходов статусов заказа.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrMealsUnavailable — хотя бы одно блюдо заказа сейчас недоступно.
	ErrMealsUnavailable = errors.New("meals unavailable")
	// ErrReviewNotEligible — покупатель не получал это блюдо в доставленном заказе.
	ErrReviewNotEligible = errors.New("customer has no delivered order with this meal")
	// ErrReviewExists — отзыв этого покупателя на это блюдо уже существует.
	ErrReviewExists = errors.New("review already exists for this meal")

	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении заказа.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// InvalidTransitionError описывает запрещённый переход статуса с диагностикой:
// текущий статус, запрошенный и допустимое множество.
type InvalidTransitionError struct {
	From      OrderStatus
	Requested OrderStatus
	Allowed   []OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	allowed := make([]string, 0, len(e.Allowed))
	for _, s := range e.Allowed {
		allowed = append(allowed, string(s))
	}
	allowedStr := strings.Join(allowed, ", ")
	if allowedStr == "" {
		allowedStr = "none"
	}
	return fmt.Sprintf("invalid status transition from %s to %s, allowed: %s", e.From, e.Requested, allowedStr)
}

// Is позволяет проверять ошибку через errors.Is(err, ErrInvalidTransition).
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// MealsUnavailableError перечисляет блюда, из-за которых заказ нельзя оформить.
type MealsUnavailableError struct {
	// Names — названия недоступных блюд для сообщения пользователю.
	Names []string
}

func (e *MealsUnavailableError) Error() string {
	return fmt.Sprintf("these meals are currently unavailable: %s", strings.Join(e.Names, ", "))
}

// Is позволяет проверять ошибку через errors.Is(err, ErrMealsUnavailable).
func (e *MealsUnavailableError) Is(target error) bool {
	return target == ErrMealsUnavailable
}

// MealsNotFoundError перечисляет идентификаторы блюд, отсутствующих в каталоге.
type MealsNotFoundError struct {
	IDs []string
}

func (e *MealsNotFoundError) Error() string {
	return fmt.Sprintf("meal(s) not found: %s", strings.Join(e.IDs, ", "))
}

// Is позволяет проверять ошибку через errors.Is(err, ErrMealNotFound).
func (e *MealsNotFoundError) Is(target error) bool {
	return target == ErrMealNotFound
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsDomainError отличает бизнес-ошибки от инфраструктурных сбоев хранилища:
// бизнес-ошибки детерминированы и не ретраятся, сбои — наоборот.
func IsDomainError(err error) bool {
	for _, sentinel := range []error{
		ErrOrderNotFound,
		ErrMealNotFound,
		ErrProviderNotFound,
		ErrReviewNotFound,
		ErrForbidden,
		ErrInvalidTransition,
		ErrMealsUnavailable,
		ErrReviewNotEligible,
		ErrReviewExists,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
