package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodmarket/internal/domain"
	"github.com/vladislavdragonenkov/foodmarket/internal/service/order"
	"github.com/vladislavdragonenkov/foodmarket/internal/service/review"
)

// Server — HTTP API маркетплейса: заказы и отзывы.
type Server struct {
	srv    *http.Server
	logger *log.Entry
}

// NewServer собирает роутинг и middleware поверх стандартного ServeMux.
func NewServer(
	addr string,
	orderSvc *order.Service,
	reviewSvc *review.Service,
	catalog domain.CatalogStore,
	logger *log.Entry,
) *Server {
	if logger == nil {
		logger = log.WithField("component", "http-server")
	}

	orders := NewOrderHandler(orderSvc, catalog, logger.WithField("handler", "orders"))
	reviews := NewReviewHandler(reviewSvc, catalog, logger.WithField("handler", "reviews"))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/orders", orders.Place)
	mux.HandleFunc("GET /api/v1/orders", orders.List)
	mux.HandleFunc("GET /api/v1/orders/{id}", orders.Get)
	mux.HandleFunc("PATCH /api/v1/orders/{id}/status", orders.AdvanceStatus)
	mux.HandleFunc("POST /api/v1/orders/{id}/cancel", orders.Cancel)

	mux.HandleFunc("POST /api/v1/reviews", reviews.Submit)
	mux.HandleFunc("PATCH /api/v1/reviews/{id}", reviews.Edit)
	mux.HandleFunc("DELETE /api/v1/reviews/{id}", reviews.Delete)
	mux.HandleFunc("GET /api/v1/meals/{id}/reviews", reviews.ListByMeal)

	handler := recoveryMiddleware(logger)(loggingMiddleware(logger)(mux))

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Handler возвращает корневой handler сервера (для тестов через httptest).
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start слушает addr до остановки сервера.
func (s *Server) Start() error {
	s.logger.Infof("HTTP API слушает %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown аккуратно останавливает сервер.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func loggingMiddleware(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.WithFields(log.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"duration_ms": time.Since(start).Milliseconds(),
			}).Debug("request completed")
		})
	}
}

func recoveryMiddleware(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.WithField("panic", rec).Error("panic recovered")
					writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
