// Package observability provides Prometheus metrics for monitoring agents.
package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics of one process. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Tick metrics
	TicksProcessed   *prometheus.CounterVec
	IntervalClosings *prometheus.CounterVec
	Rollovers        *prometheus.CounterVec

	// State machine metrics
	PhaseTransitions *prometheus.CounterVec
	CurrentPhase     *prometheus.GaugeVec
	StateSaveErrors  *prometheus.CounterVec

	// Order metrics
	OrdersPlaced   *prometheus.CounterVec
	OrdersFilled   *prometheus.CounterVec
	OrderErrors    *prometheus.CounterVec
	RealizedProfit *prometheus.GaugeVec

	// Exchange metrics
	Reconnects      *prometheus.CounterVec
	ExchangeLatency *prometheus.HistogramVec
}

// NewMetrics creates metrics registered on a fresh registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "stonkminer"
	}

	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		TicksProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "ticks_processed_total",
			Help:      "Total number of ticks handled by the decision engine",
		}, []string{"agent"}),
		IntervalClosings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "interval_closings_total",
			Help:      "Total number of intervals flagged as closing",
		}, []string{"agent"}),
		Rollovers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "rollovers_total",
			Help:      "Total number of interval rollovers",
		}, []string{"agent"}),

		PhaseTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fsm",
			Name:      "phase_transitions_total",
			Help:      "Total number of phase changes by target phase",
		}, []string{"agent", "phase"}),
		CurrentPhase: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fsm",
			Name:      "current_phase",
			Help:      "Numeric code of the current phase",
		}, []string{"agent"}),
		StateSaveErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fsm",
			Name:      "state_save_errors_total",
			Help:      "Total number of failed state saves",
		}, []string{"agent"}),

		OrdersPlaced: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Total number of orders accepted by the exchange",
		}, []string{"agent", "side"}),
		OrdersFilled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "filled_total",
			Help:      "Total number of orders confirmed filled",
		}, []string{"agent", "side"}),
		OrderErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "errors_total",
			Help:      "Total number of failed order submissions and queries",
		}, []string{"agent", "operation"}),
		RealizedProfit: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "realized_profit",
			Help:      "Total realized profit in quote currency",
		}, []string{"agent"}),

		Reconnects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "reconnects_total",
			Help:      "Total number of tick stream reconnects",
		}, []string{"agent"}),
		ExchangeLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "call_duration_seconds",
			Help:      "Exchange call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RecordTick counts a handled tick.
func (m *Metrics) RecordTick(agent string) {
	if m == nil {
		return
	}
	m.TicksProcessed.WithLabelValues(agent).Inc()
}

// RecordIntervalClosing counts a closing interval.
func (m *Metrics) RecordIntervalClosing(agent string) {
	if m == nil {
		return
	}
	m.IntervalClosings.WithLabelValues(agent).Inc()
}

// RecordRollover counts an interval rollover.
func (m *Metrics) RecordRollover(agent string) {
	if m == nil {
		return
	}
	m.Rollovers.WithLabelValues(agent).Inc()
}

// RecordPhase records a phase change.
func (m *Metrics) RecordPhase(agent, phase string, code int) {
	if m == nil {
		return
	}
	m.PhaseTransitions.WithLabelValues(agent, phase).Inc()
	m.CurrentPhase.WithLabelValues(agent).Set(float64(code))
}

// RecordStateSaveError counts a failed state save.
func (m *Metrics) RecordStateSaveError(agent string) {
	if m == nil {
		return
	}
	m.StateSaveErrors.WithLabelValues(agent).Inc()
}

// RecordOrderPlaced counts an accepted order.
func (m *Metrics) RecordOrderPlaced(agent, side string) {
	if m == nil {
		return
	}
	m.OrdersPlaced.WithLabelValues(agent, side).Inc()
}

// RecordOrderFilled counts a filled order.
func (m *Metrics) RecordOrderFilled(agent, side string) {
	if m == nil {
		return
	}
	m.OrdersFilled.WithLabelValues(agent, side).Inc()
}

// RecordOrderError counts a failed submit or query.
func (m *Metrics) RecordOrderError(agent, operation string) {
	if m == nil {
		return
	}
	m.OrderErrors.WithLabelValues(agent, operation).Inc()
}

// SetRealizedProfit sets the running profit of an agent.
func (m *Metrics) SetRealizedProfit(agent string, profit float64) {
	if m == nil {
		return
	}
	m.RealizedProfit.WithLabelValues(agent).Set(profit)
}

// RecordReconnect counts a tick stream reconnect.
func (m *Metrics) RecordReconnect(agent string) {
	if m == nil {
		return
	}
	m.Reconnects.WithLabelValues(agent).Inc()
}

// ObserveExchangeCall records the latency of an exchange call.
func (m *Metrics) ObserveExchangeCall(operation string, started time.Time) {
	if m == nil {
		return
	}
	m.ExchangeLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
