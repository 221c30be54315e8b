package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/vladislavdragonenkov/foodmarket/internal/domain"
)

var (
	errUserRequired = errors.New("X-User-Id header is required")
	errRoleUnknown  = errors.New("X-User-Role header must be one of: CUSTOMER, PROVIDER, ADMIN")
)

// resolveActor собирает актора из заголовков аутентифицирующего прокси.
// Для роли PROVIDER профиль ресторана резолвится один раз здесь, чтобы
// сервисы работали с готовым ProviderID.
func resolveActor(r *http.Request, catalog domain.CatalogStore) (domain.Actor, error) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		return domain.Actor{}, errUserRequired
	}

	role := domain.Role(strings.ToUpper(strings.TrimSpace(r.Header.Get("X-User-Role"))))
	switch role {
	case domain.RoleCustomer, domain.RoleAdmin:
		return domain.Actor{UserID: userID, Role: role}, nil
	case domain.RoleProvider:
		profile, err := catalog.ProviderByUser(userID)
		if err != nil {
			return domain.Actor{}, err
		}
		return domain.Actor{UserID: userID, Role: role, ProviderID: profile.ID}, nil
	default:
		return domain.Actor{}, errRoleUnknown
	}
}

// pageFromQuery читает параметры пагинации; границы нормализует domain.Page.
func pageFromQuery(r *http.Request) domain.Page {
	page := domain.Page{}
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			page.Number = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			page.Limit = n
		}
	}
	return page
}
