package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/foodmarket/internal/domain"
	"github.com/vladislavdragonenkov/foodmarket/internal/service/order"
	"github.com/vladislavdragonenkov/foodmarket/internal/service/review"
	"github.com/vladislavdragonenkov/foodmarket/internal/storage/memory"
	transport "github.com/vladislavdragonenkov/foodmarket/internal/transport/http"
)

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: false, DisableTimestamp: true})
	logger.SetLevel(logrus.DebugLevel)
	return logger.WithField("component", "test")
}

type env struct {
	handler http.Handler
	catalog *memory.CatalogStore
	orders  domain.OrderRepository
}

func newEnv(t *testing.T) *env {
	t.Helper()

	catalog := memory.NewCatalogStore()
	catalog.PutProvider(domain.ProviderProfile{
		ID:             "provider-1",
		UserID:         "user-provider-1",
		RestaurantName: "Plov House",
	})
	catalog.PutMeal(domain.Meal{
		ID:          "meal-1",
		ProviderID:  "provider-1",
		Name:        "Plov",
		PriceMinor:  1000,
		IsAvailable: true,
	})

	orders := memory.NewOrderRepository(catalog)
	reviews := memory.NewReviewRepository(catalog)
	outboxRepo := memory.NewOutboxRepository()
	logger := loggerForTests()

	orderSvc := order.NewServiceWithoutMetrics(orders, catalog, outboxRepo, logger)
	reviewSvc := review.NewServiceWithoutMetrics(reviews, orders, catalog, outboxRepo, logger)

	server := transport.NewServer(":0", orderSvc, reviewSvc, catalog, logger)
	return &env{handler: server.Handler(), catalog: catalog, orders: orders}
}

func (e *env) do(t *testing.T, method, path, userID, role string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func placeOrderBody() map[string]interface{} {
	return map[string]interface{}{
		"lines": []map[string]interface{}{
			{"meal_id": "meal-1", "qty": 2},
		},
		"delivery_address": "Abaya 10",
		"delivery_city":    "Almaty",
		"delivery_phone":   "+77001234567",
	}
}

func (e *env) placeOrder(t *testing.T) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/v1/orders", "customer-1", "CUSTOMER", placeOrderBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

func TestPlaceOrderEndpoint(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/orders", "customer-1", "CUSTOMER", placeOrderBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Status     string `json:"status"`
		TotalMinor int64  `json:"total_minor"`
		Lines      []struct {
			Name string `json:"name"`
		} `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "PLACED", resp.Status)
	require.Equal(t, int64(2000), resp.TotalMinor)
	require.Len(t, resp.Lines, 1)
	require.Equal(t, "Plov", resp.Lines[0].Name)
}

func TestPlaceOrderEndpoint_Errors(t *testing.T) {
	e := newEnv(t)

	// Без пользователя — 401.
	rec := e.do(t, http.MethodPost, "/api/v1/orders", "", "", placeOrderBody())
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Чужая роль — 403.
	rec = e.do(t, http.MethodPost, "/api/v1/orders", "user-provider-1", "PROVIDER", placeOrderBody())
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Неизвестное блюдо — 404.
	body := placeOrderBody()
	body["lines"] = []map[string]interface{}{{"meal_id": "meal-ghost", "qty": 1}}
	rec = e.do(t, http.MethodPost, "/api/v1/orders", "customer-1", "CUSTOMER", body)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Пустой список позиций — 400.
	body = placeOrderBody()
	body["lines"] = []map[string]interface{}{}
	rec = e.do(t, http.MethodPost, "/api/v1/orders", "customer-1", "CUSTOMER", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdvanceStatusEndpoint(t *testing.T) {
	e := newEnv(t)
	orderID := e.placeOrder(t)

	rec := e.do(t, http.MethodPatch, "/api/v1/orders/"+orderID+"/status", "user-provider-1", "PROVIDER",
		map[string]string{"status": "PREPARING"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Status      string     `json:"status"`
		PreparingAt *time.Time `json:"preparing_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "PREPARING", resp.Status)
	require.NotNil(t, resp.PreparingAt)
}

func TestAdvanceStatusEndpoint_InvalidTransition(t *testing.T) {
	e := newEnv(t)
	orderID := e.placeOrder(t)

	rec := e.do(t, http.MethodPatch, "/api/v1/orders/"+orderID+"/status", "user-provider-1", "PROVIDER",
		map[string]string{"status": "READY"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Error   string   `json:"error"`
		Allowed []string `json:"allowed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.ElementsMatch(t, []string{"PREPARING", "CANCELLED"}, resp.Allowed)
}

func TestAdvanceStatusEndpoint_UnknownStatus(t *testing.T) {
	e := newEnv(t)
	orderID := e.placeOrder(t)

	rec := e.do(t, http.MethodPatch, "/api/v1/orders/"+orderID+"/status", "user-provider-1", "PROVIDER",
		map[string]string{"status": "SHIPPED"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdvanceStatusEndpoint_UnknownProviderProfile(t *testing.T) {
	e := newEnv(t)
	orderID := e.placeOrder(t)

	rec := e.do(t, http.MethodPatch, "/api/v1/orders/"+orderID+"/status", "user-without-profile", "PROVIDER",
		map[string]string{"status": "PREPARING"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelEndpoint(t *testing.T) {
	e := newEnv(t)
	orderID := e.placeOrder(t)

	// Чужой покупатель — 403.
	rec := e.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/cancel", "customer-2", "CUSTOMER", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/cancel", "customer-1", "CUSTOMER", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "CANCELLED", resp.Status)

	// Повторная отмена — 400, переход из терминального статуса.
	rec = e.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/cancel", "customer-1", "CUSTOMER", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrderEndpoint(t *testing.T) {
	e := newEnv(t)
	orderID := e.placeOrder(t)

	rec := e.do(t, http.MethodGet, "/api/v1/orders/"+orderID, "customer-1", "CUSTOMER", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/orders/"+orderID, "customer-2", "CUSTOMER", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/orders/missing", "customer-1", "CUSTOMER", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrdersEndpoint(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 3; i++ {
		e.placeOrder(t)
	}

	rec := e.do(t, http.MethodGet, "/api/v1/orders?page=1&limit=2", "customer-1", "CUSTOMER", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Orders []json.RawMessage `json:"orders"`
		Page   int               `json:"page"`
		Limit  int               `json:"limit"`
		Total  int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 3, resp.Total)
	require.Len(t, resp.Orders, 2)
	require.Equal(t, 1, resp.Page)
	require.Equal(t, 2, resp.Limit)

	// Ресторан видит заказы со своими позициями.
	rec = e.do(t, http.MethodGet, "/api/v1/orders", "user-provider-1", "PROVIDER", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 3, resp.Total)
}

func (e *env) deliverOrder(t *testing.T, orderID string) {
	t.Helper()
	for _, status := range []string{"PREPARING", "READY", "DELIVERED"} {
		rec := e.do(t, http.MethodPatch, "/api/v1/orders/"+orderID+"/status", "user-provider-1", "PROVIDER",
			map[string]string{"status": status})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestReviewEndpoints(t *testing.T) {
	e := newEnv(t)
	orderID := e.placeOrder(t)

	// До доставки отзыв невозможен.
	rec := e.do(t, http.MethodPost, "/api/v1/reviews", "customer-1", "CUSTOMER",
		map[string]interface{}{"meal_id": "meal-1", "rating": 5})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	e.deliverOrder(t, orderID)

	rec = e.do(t, http.MethodPost, "/api/v1/reviews", "customer-1", "CUSTOMER",
		map[string]interface{}{"meal_id": "meal-1", "rating": 5, "comment": "good"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Review struct {
			ID string `json:"id"`
		} `json:"review"`
		MealRating struct {
			Average float64 `json:"average"`
			Count   int     `json:"count"`
		} `json:"meal_rating"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, 5.0, created.MealRating.Average)
	require.Equal(t, 1, created.MealRating.Count)

	// Дубль отзыва — 409.
	rec = e.do(t, http.MethodPost, "/api/v1/reviews", "customer-1", "CUSTOMER",
		map[string]interface{}{"meal_id": "meal-1", "rating": 3})
	require.Equal(t, http.StatusConflict, rec.Code)

	// Редактирование автором.
	rec = e.do(t, http.MethodPatch, "/api/v1/reviews/"+created.Review.ID, "customer-1", "CUSTOMER",
		map[string]interface{}{"rating": 4})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Чужое редактирование — 403.
	rec = e.do(t, http.MethodPatch, "/api/v1/reviews/"+created.Review.ID, "customer-2", "CUSTOMER",
		map[string]interface{}{"rating": 1})
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Публичный список отзывов.
	rec = e.do(t, http.MethodGet, "/api/v1/meals/meal-1/reviews", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Reviews    []json.RawMessage `json:"reviews"`
		MealRating struct {
			Average float64 `json:"average"`
			Count   int     `json:"count"`
		} `json:"meal_rating"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Total)
	require.Equal(t, 4.0, list.MealRating.Average)

	// Удаление администратором.
	rec = e.do(t, http.MethodDelete, "/api/v1/reviews/"+created.Review.ID, "admin-1", "ADMIN", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/v1/meals/meal-1/reviews", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 0, list.Total)
	require.Equal(t, 0.0, list.MealRating.Average)
}

func TestUnknownRoleRejected(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/v1/orders", "user-1", "SUPERVISOR", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeliveredOrderCreditsProviderOnce(t *testing.T) {
	e := newEnv(t)
	orderID := e.placeOrder(t)
	e.deliverOrder(t, orderID)

	profile, err := e.catalog.GetProvider("provider-1")
	require.NoError(t, err)
	require.Equal(t, 1, profile.TotalOrders)

	// Повторный перевод в DELIVERED не проходит и не кредитует.
	rec := e.do(t, http.MethodPatch, "/api/v1/orders/"+orderID+"/status", "user-provider-1", "PROVIDER",
		map[string]string{"status": "DELIVERED"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	profile, err = e.catalog.GetProvider("provider-1")
	require.NoError(t, err)
	require.Equal(t, 1, profile.TotalOrders)
}
