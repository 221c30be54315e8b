package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodmarket/internal/domain"
	"github.com/vladislavdragonenkov/foodmarket/internal/service/order"
)

// OrderHandler обслуживает REST-операции жизненного цикла заказа.
type OrderHandler struct {
	service *order.Service
	catalog domain.CatalogStore
	logger  *log.Entry
}

// NewOrderHandler создаёт handler заказов.
func NewOrderHandler(service *order.Service, catalog domain.CatalogStore, logger *log.Entry) *OrderHandler {
	if logger == nil {
		logger = log.WithField("component", "http-orders")
	}
	return &OrderHandler{service: service, catalog: catalog, logger: logger}
}

type placeOrderRequest struct {
	Lines           []orderLineRequest `json:"lines"`
	DeliveryAddress string             `json:"delivery_address"`
	DeliveryCity    string             `json:"delivery_city"`
	DeliveryPhone   string             `json:"delivery_phone"`
	Note            string             `json:"note"`
}

type orderLineRequest struct {
	MealID string `json:"meal_id"`
	Qty    int32  `json:"qty"`
}

type advanceStatusRequest struct {
	Status string `json:"status"`
}

type orderLineResponse struct {
	ID         string `json:"id"`
	MealID     string `json:"meal_id"`
	ProviderID string `json:"provider_id"`
	Name       string `json:"name"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	CustomerID      string              `json:"customer_id"`
	Status          string              `json:"status"`
	TotalMinor      int64               `json:"total_minor"`
	DeliveryAddress string              `json:"delivery_address"`
	DeliveryCity    string              `json:"delivery_city,omitempty"`
	DeliveryPhone   string              `json:"delivery_phone,omitempty"`
	Note            string              `json:"note,omitempty"`
	Lines           []orderLineResponse `json:"lines"`
	Version         int64               `json:"version"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	PreparingAt     *time.Time          `json:"preparing_at,omitempty"`
	ReadyAt         *time.Time          `json:"ready_at,omitempty"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
	Total  int             `json:"total"`
}

// Place обрабатывает POST /api/v1/orders.
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if actor.Role != domain.RoleCustomer {
		writeDomainError(w, h.logger, domain.ErrForbidden)
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	input := order.PlaceOrderInput{
		DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
		DeliveryCity:    strings.TrimSpace(req.DeliveryCity),
		DeliveryPhone:   strings.TrimSpace(req.DeliveryPhone),
		Note:            strings.TrimSpace(req.Note),
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, order.LineInput{MealID: line.MealID, Qty: line.Qty})
	}

	placed, err := h.service.PlaceOrder(r.Context(), actor.UserID, input)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(placed))
}

// Get обрабатывает GET /api/v1/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	found, err := h.service.GetOrder(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(found))
}

// List обрабатывает GET /api/v1/orders: покупатель видит свои заказы,
// ресторан — заказы со своими позициями.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	filter := domain.OrderFilter{
		Status: domain.OrderStatus(strings.ToUpper(r.URL.Query().Get("status"))),
		Page:   pageFromQuery(r),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		writeDomainError(w, h.logger, domain.ErrStatusUnknown)
		return
	}

	var (
		orders []domain.Order
		total  int
		err    error
	)
	switch actor.Role {
	case domain.RoleCustomer:
		orders, total, err = h.service.ListCustomerOrders(r.Context(), actor.UserID, filter)
	case domain.RoleProvider:
		orders, total, err = h.service.ListProviderOrders(r.Context(), actor.ProviderID, filter)
	default:
		writeDomainError(w, h.logger, domain.ErrForbidden)
		return
	}
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	page, _ := filter.Page.Normalize()
	resp := orderListResponse{
		Orders: make([]orderResponse, 0, len(orders)),
		Page:   page.Number,
		Limit:  page.Limit,
		Total:  total,
	}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, toOrderResponse(o))
	}

	writeJSON(w, http.StatusOK, resp)
}

// AdvanceStatus обрабатывает PATCH /api/v1/orders/{id}/status.
func (h *OrderHandler) AdvanceStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req advanceStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	requested := domain.OrderStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !requested.IsValid() {
		writeDomainError(w, h.logger, domain.ErrStatusUnknown)
		return
	}

	updated, err := h.service.AdvanceStatus(r.Context(), actor, r.PathValue("id"), requested)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(updated))
}

// Cancel обрабатывает POST /api/v1/orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if actor.Role != domain.RoleCustomer {
		writeDomainError(w, h.logger, domain.ErrForbidden)
		return
	}

	cancelled, err := h.service.CancelOrder(r.Context(), actor.UserID, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(cancelled))
}

func (h *OrderHandler) actor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
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

func toOrderResponse(o domain.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		Status:          string(o.Status),
		TotalMinor:      o.TotalMinor,
		DeliveryAddress: o.DeliveryAddress,
		DeliveryCity:    o.DeliveryCity,
		DeliveryPhone:   o.DeliveryPhone,
		Note:            o.Note,
		Lines:           make([]orderLineResponse, 0, len(o.Lines)),
		Version:         o.Version,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		PreparingAt:     o.PreparingAt,
		ReadyAt:         o.ReadyAt,
		DeliveredAt:     o.DeliveredAt,
		CancelledAt:     o.CancelledAt,
	}
	for _, line := range o.Lines {
		resp.Lines = append(resp.Lines, orderLineResponse{
			ID:         line.ID,
			MealID:     line.MealID,
			ProviderID: line.ProviderID,
			Name:       line.Name,
			Qty:        line.Qty,
			PriceMinor: line.PriceMinor,
		})
	}
	return resp
}
