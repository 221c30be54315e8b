package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodmarket/internal/domain"
	"github.com/vladislavdragonenkov/foodmarket/internal/service/review"
)

// ReviewHandler обслуживает REST-операции над отзывами и рейтингами блюд.
type ReviewHandler struct {
	service *review.Service
	catalog domain.CatalogStore
	logger  *log.Entry
}

// NewReviewHandler создаёт handler отзывов.
func NewReviewHandler(service *review.Service, catalog domain.CatalogStore, logger *log.Entry) *ReviewHandler {
	if logger == nil {
		logger = log.WithField("component", "http-reviews")
	}
	return &ReviewHandler{service: service, catalog: catalog, logger: logger}
}

type submitReviewRequest struct {
	MealID  string `json:"meal_id"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type editReviewRequest struct {
	Rating  *int    `json:"rating"`
	Comment *string `json:"comment"`
}

type reviewResponse struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	MealID     string    `json:"meal_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type mealRatingResponse struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

type reviewMutationResponse struct {
	Review     reviewResponse     `json:"review"`
	MealRating mealRatingResponse `json:"meal_rating"`
}

type reviewListResponse struct {
	Reviews    []reviewResponse   `json:"reviews"`
	MealRating mealRatingResponse `json:"meal_rating"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	Total      int                `json:"total"`
}

// Submit обрабатывает POST /api/v1/reviews.
func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if actor.Role != domain.RoleCustomer {
		writeDomainError(w, h.logger, domain.ErrForbidden)
		return
	}

	var req submitReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	created, rating, err := h.service.Submit(r.Context(), actor.UserID, review.SubmitInput{
		MealID:  req.MealID,
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, reviewMutationResponse{
		Review:     toReviewResponse(created),
		MealRating: mealRatingResponse(rating),
	})
}

// Edit обрабатывает PATCH /api/v1/reviews/{id}.
func (h *ReviewHandler) Edit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if actor.Role != domain.RoleCustomer {
		writeDomainError(w, h.logger, domain.ErrForbidden)
		return
	}

	var req editReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	updated, rating, err := h.service.Edit(r.Context(), actor.UserID, r.PathValue("id"), review.EditInput{
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, reviewMutationResponse{
		Review:     toReviewResponse(updated),
		MealRating: mealRatingResponse(rating),
	})
}

// Delete обрабатывает DELETE /api/v1/reviews/{id}.
func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	rating, err := h.service.Delete(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]mealRatingResponse{"meal_rating": mealRatingResponse(rating)})
}

// ListByMeal обрабатывает GET /api/v1/meals/{id}/reviews. Доступ публичный.
func (h *ReviewHandler) ListByMeal(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r)

	reviews, total, rating, err := h.service.ListMealReviews(r.Context(), r.PathValue("id"), page)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	normalized, _ := page.Normalize()
	resp := reviewListResponse{
		Reviews:    make([]reviewResponse, 0, len(reviews)),
		MealRating: mealRatingResponse(rating),
		Page:       normalized.Number,
		Limit:      normalized.Limit,
		Total:      total,
	}
	for _, rv := range reviews {
		resp.Reviews = append(resp.Reviews, toReviewResponse(rv))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *ReviewHandler) actor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, err := resolveActor(r, h.catalog)
	if err != nil {
		switch {
		case errors.Is(err, errUserRequired):
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		case errors.Is(err, errRoleUnknown):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		default:
			writeDomainError(w, h.logger, err)
		}
		return domain.Actor{}, false
	}
	return actor, true
}

func toReviewResponse(rv domain.Review) reviewResponse {
	return reviewResponse{
		ID:         rv.ID,
		CustomerID: rv.CustomerID,
		MealID:     rv.MealID,
		Rating:     rv.Rating,
		Comment:    rv.Comment,
		CreatedAt:  rv.CreatedAt,
		UpdatedAt:  rv.UpdatedAt,
	}
}
