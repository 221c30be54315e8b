package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики движка жизненного цикла заказов.
type OrderMetrics struct {
	ordersPlaced       prometheus.Counter
	statusTransitions  *prometheus.CounterVec
	invalidTransitions prometheus.Counter
	forbidden          prometheus.Counter
	transitionDuration prometheus.Histogram
}

// ReviewMetrics содержит метрики движка агрегации рейтингов.
type ReviewMetrics struct {
	mutations         *prometheus.CounterVec
	rejected          *prometheus.CounterVec
	recomputeDuration prometheus.Histogram
}

// NewOrderMetrics создаёт метрики заказов в default registry.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersPlaced: registerCounter(registerer, prometheus.CounterOpts{
			Name: "foodmarket_orders_placed_total",
			Help: "Total number of orders placed",
		}),
		statusTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "foodmarket_order_transitions_total",
			Help: "Total number of successful order status transitions grouped by target status",
		}, []string{"status"}),
		invalidTransitions: registerCounter(registerer, prometheus.CounterOpts{
			Name: "foodmarket_order_invalid_transitions_total",
			Help: "Total number of rejected status transitions",
		}),
		forbidden: registerCounter(registerer, prometheus.CounterOpts{
			Name: "foodmarket_order_forbidden_total",
			Help: "Total number of order operations rejected by authorization",
		}),
		transitionDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "foodmarket_order_transition_duration_seconds",
			Help:    "Duration of order status transitions in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// RecordOrderPlaced учитывает созданный заказ.
func (m *OrderMetrics) RecordOrderPlaced() {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
}

// RecordTransition учитывает успешный переход в указанный статус.
func (m *OrderMetrics) RecordTransition(status string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(status).Inc()
}

// RecordInvalidTransition учитывает отклонённый переход.
func (m *OrderMetrics) RecordInvalidTransition() {
	if m == nil {
		return
	}
	m.invalidTransitions.Inc()
}

// RecordForbidden учитывает отказ в авторизации.
func (m *OrderMetrics) RecordForbidden() {
	if m == nil {
		return
	}
	m.forbidden.Inc()
}

// RecordTransitionDuration учитывает длительность перехода.
func (m *OrderMetrics) RecordTransitionDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.transitionDuration.Observe(d.Seconds())
}

// NewReviewMetrics создаёт метрики отзывов в default registry.
func NewReviewMetrics() *ReviewMetrics {
	return newReviewMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newReviewMetricsWithRegisterer(registerer prometheus.Registerer) *ReviewMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &ReviewMetrics{
		mutations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "foodmarket_review_mutations_total",
			Help: "Total number of review mutations grouped by operation",
		}, []string{"op"}),
		rejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "foodmarket_review_rejected_total",
			Help: "Total number of rejected review operations grouped by reason",
		}, []string{"reason"}),
		recomputeDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "foodmarket_review_recompute_duration_seconds",
			Help:    "Duration of rating aggregate recomputation in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
	}
}

// RecordMutation учитывает успешную мутацию отзыва (create/update/delete).
func (m *ReviewMetrics) RecordMutation(op string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op).Inc()
}

// RecordRejected учитывает отклонённую операцию с причиной.
func (m *ReviewMetrics) RecordRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

// RecordRecomputeDuration учитывает длительность пересчёта агрегата.
func (m *ReviewMetrics) RecordRecomputeDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.recomputeDuration.Observe(d.Seconds())
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}
