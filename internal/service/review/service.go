package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodmarket/internal/domain"
	"github.com/vladislavdragonenkov/foodmarket/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/foodmarket/internal/metrics"
)

// SubmitInput — данные нового отзыва.
type SubmitInput struct {
	MealID  string
	Rating  int
	Comment string
}

// EditInput — частичное обновление отзыва: nil-поле означает "не менять".
type EditInput struct {
	Rating  *int
	Comment *string
}

// Service — движок агрегации рейтингов: проверка права на отзыв,
// единственность пары (покупатель, блюдо) и атомарный пересчёт
// среднего рейтинга блюда при каждой мутации.
type Service struct {
	reviews domain.ReviewRepository
	orders  domain.OrderRepository
	catalog domain.CatalogStore
	outbox  domain.OutboxRepository
	logger  *log.Entry
	metrics *metrics.ReviewMetrics
}

// NewService создаёт рабочий экземпляр движка.
func NewService(
	reviews domain.ReviewRepository,
	orders domain.OrderRepository,
	catalog domain.CatalogStore,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "review-service")
	}
	return &Service{
		reviews: reviews,
		orders:  orders,
		catalog: catalog,
		outbox:  outbox,
		logger:  logger,
		metrics: metrics.NewReviewMetrics(),
	}
}

// NewServiceWithoutMetrics создаёт движок без метрик (для тестов).
func NewServiceWithoutMetrics(
	reviews domain.ReviewRepository,
	orders domain.OrderRepository,
	catalog domain.CatalogStore,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Service {
	svc := NewService(reviews, orders, catalog, outbox, logger)
	svc.metrics = nil
	return svc
}

// Submit создаёт отзыв покупателя на блюдо.
// Право на отзыв даёт хотя бы один доставленный заказ с этим блюдом;
// повторный отзыв той же пары (покупатель, блюдо) отклоняется.
func (s *Service) Submit(ctx context.Context, customerID string, input SubmitInput) (domain.Review, domain.MealRating, error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordRecomputeDuration(time.Since(start))
	}()

	if _, err := s.catalog.GetMeal(input.MealID); err != nil {
		if errors.Is(err, domain.ErrMealNotFound) {
			s.metrics.RecordRejected("meal_not_found")
		}
		return domain.Review{}, domain.MealRating{}, err
	}

	eligible, err := s.orders.HasDeliveredMeal(customerID, input.MealID)
	if err != nil {
		return domain.Review{}, domain.MealRating{}, fmt.Errorf("check review eligibility: %w", err)
	}
	if !eligible {
		s.metrics.RecordRejected("not_eligible")
		return domain.Review{}, domain.MealRating{}, domain.ErrReviewNotEligible
	}

	// Дубль отклоняем до записи; уникальный индекс страхует гонку
	// двух одновременных Submit одной пары.
	if _, err := s.reviews.FindByCustomerMeal(customerID, input.MealID); err == nil {
		s.metrics.RecordRejected("duplicate")
		return domain.Review{}, domain.MealRating{}, domain.ErrReviewExists
	} else if !errors.Is(err, domain.ErrReviewNotFound) {
		return domain.Review{}, domain.MealRating{}, fmt.Errorf("check existing review: %w", err)
	}

	now := time.Now().UTC()
	review := domain.Review{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		MealID:     input.MealID,
		Rating:     input.Rating,
		Comment:    strings.TrimSpace(input.Comment),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if errs := review.ValidateInvariants(); len(errs) > 0 {
		s.metrics.RecordRejected("invalid")
		return domain.Review{}, domain.MealRating{}, errors.Join(errs...)
	}

	rating, err := s.reviews.Create(review)
	if err != nil {
		if errors.Is(err, domain.ErrReviewExists) {
			s.metrics.RecordRejected("duplicate")
		}
		return domain.Review{}, domain.MealRating{}, err
	}

	s.metrics.RecordMutation("create")
	s.emitReviewEvent(kafka.EventTypeReviewCreated, review, rating)

	return review, rating, nil
}

// Edit обновляет рейтинг и/или комментарий отзыва.
// Редактировать отзыв может только его автор.
func (s *Service) Edit(ctx context.Context, customerID, reviewID string, input EditInput) (domain.Review, domain.MealRating, error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordRecomputeDuration(time.Since(start))
	}()

	review, err := s.reviews.Get(reviewID)
	if err != nil {
		return domain.Review{}, domain.MealRating{}, err
	}
	if review.CustomerID != customerID {
		s.metrics.RecordRejected("forbidden")
		return domain.Review{}, domain.MealRating{}, domain.ErrForbidden
	}

	if input.Rating != nil {
		review.Rating = *input.Rating
	}
	if input.Comment != nil {
		review.Comment = strings.TrimSpace(*input.Comment)
	}
	review.UpdatedAt = time.Now().UTC()

	if errs := review.ValidateInvariants(); len(errs) > 0 {
		s.metrics.RecordRejected("invalid")
		return domain.Review{}, domain.MealRating{}, errors.Join(errs...)
	}

	rating, err := s.reviews.Update(review)
	if err != nil {
		return domain.Review{}, domain.MealRating{}, err
	}

	s.metrics.RecordMutation("update")
	s.emitReviewEvent(kafka.EventTypeReviewUpdated, review, rating)

	return review, rating, nil
}

// Delete удаляет отзыв. Разрешено автору отзыва и администратору;
// рейтинг блюда пересчитывается по оставшимся отзывам.
func (s *Service) Delete(ctx context.Context, actor domain.Actor, reviewID string) (domain.MealRating, error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordRecomputeDuration(time.Since(start))
	}()

	review, err := s.reviews.Get(reviewID)
	if err != nil {
		return domain.MealRating{}, err
	}
	if actor.Role != domain.RoleAdmin && review.CustomerID != actor.UserID {
		s.metrics.RecordRejected("forbidden")
		return domain.MealRating{}, domain.ErrForbidden
	}

	rating, err := s.reviews.Delete(reviewID)
	if err != nil {
		return domain.MealRating{}, err
	}

	s.metrics.RecordMutation("delete")
	s.emitReviewEvent(kafka.EventTypeReviewDeleted, review, rating)

	return rating, nil
}

// ListMealReviews возвращает страницу отзывов блюда, общее количество
// и текущий агрегированный рейтинг.
func (s *Service) ListMealReviews(ctx context.Context, mealID string, page domain.Page) ([]domain.Review, int, domain.MealRating, error) {
	meal, err := s.catalog.GetMeal(mealID)
	if err != nil {
		return nil, 0, domain.MealRating{}, err
	}

	reviews, total, err := s.reviews.ListByMeal(mealID, page)
	if err != nil {
		return nil, 0, domain.MealRating{}, err
	}

	return reviews, total, domain.MealRating{Average: meal.Rating, Count: meal.TotalReviews}, nil
}

func (s *Service) emitReviewEvent(eventType kafka.EventType, review domain.Review, rating domain.MealRating) {
	if s.outbox == nil {
		return
	}

	event := kafka.NewReviewEvent(eventType, review.ID, review.MealID, review.CustomerID, review.Rating, rating.Average, rating.Count)
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.WithError(err).WithField("review_id", review.ID).Warn("failed to marshal review event")
		return
	}

	if _, err := s.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: kafka.AggregateReview,
		AggregateID:   review.ID,
		EventType:     string(eventType),
		Payload:       payload,
	}); err != nil {
		s.logger.WithError(err).WithField("review_id", review.ID).Warn("failed to enqueue review event")
	}
}
