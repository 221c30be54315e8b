package http

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodmarket/internal/domain"
)

// errorResponse — единый формат ошибки API.
type errorResponse struct {
	Error   string   `json:"error"`
	Allowed []string `json:"allowed,omitempty"`
	Meals   []string `json:"meals,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// writeDomainError переводит доменную ошибку в HTTP-статус.
// Структурные ошибки переходов и недоступных блюд раскрываются в детали
// ответа, инфраструктурные проблемы прячутся за 500.
func writeDomainError(w http.ResponseWriter, logger *log.Entry, err error) {
	var transitionErr *domain.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		allowed := make([]string, 0, len(transitionErr.Allowed))
		for _, status := range transitionErr.Allowed {
			allowed = append(allowed, string(status))
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: transitionErr.Error(), Allowed: allowed})
		return
	}

	var unavailableErr *domain.MealsUnavailableError
	if errors.As(err, &unavailableErr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: unavailableErr.Error(), Meals: unavailableErr.Names})
		return
	}

	var notFoundErr *domain.MealsNotFoundError
	if errors.As(err, &notFoundErr) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: notFoundErr.Error(), Meals: notFoundErr.IDs})
		return
	}

	switch {
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrMealNotFound),
		errors.Is(err, domain.ErrReviewNotFound),
		errors.Is(err, domain.ErrProviderNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrReviewExists),
		errors.Is(err, domain.ErrOrderVersionConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrReviewNotEligible),
		errors.Is(err, domain.ErrInvalidTransition),
		isValidationError(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		if logger != nil {
			logger.WithError(err).Error("request failed")
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		domain.ErrCustomerRequired,
		domain.ErrDeliveryAddressRequired,
		domain.ErrLinesRequired,
		domain.ErrTotalNegative,
		domain.ErrTotalMismatch,
		domain.ErrLineQtyInvalid,
		domain.ErrLinePriceInvalid,
		domain.ErrLineMealRequired,
		domain.ErrStatusUnknown,
		domain.ErrRatingOutOfRange,
		domain.ErrCommentTooLong,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
