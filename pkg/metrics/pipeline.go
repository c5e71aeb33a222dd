package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records counters for the payment and fulfillment pipeline.
type PipelineMetrics struct {
	checkoutSessions *prometheus.CounterVec
	webhookEvents    *prometheus.CounterVec
	ordersCreated    prometheus.Counter
	stockConflicts   prometheus.Counter
	assignments      *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	checkoutSessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_sessions_total",
		Help: "Stripe checkout sessions created, by outcome.",
	}, []string{"outcome"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Stripe webhook events received, by type and outcome.",
	}, []string{"type", "outcome"})
	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders materialized from completed checkout sessions.",
	})
	stockConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_decrement_conflicts_total",
		Help: "Stock decrements rejected because stock would go negative.",
	})
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "distributor_assignments_total",
		Help: "Distributor assignments, by mode (auto/manual).",
	}, []string{"mode"})
	reg.MustRegister(checkoutSessions, webhookEvents, ordersCreated, stockConflicts, assignments)
	return &PipelineMetrics{
		checkoutSessions: checkoutSessions,
		webhookEvents:    webhookEvents,
		ordersCreated:    ordersCreated,
		stockConflicts:   stockConflicts,
		assignments:      assignments,
	}
}

// IncCheckoutSession counts a checkout session attempt with the given outcome.
func (p *PipelineMetrics) IncCheckoutSession(outcome string) {
	if p == nil || p.checkoutSessions == nil {
		return
	}
	p.checkoutSessions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncWebhookEvent counts a received webhook event.
func (p *PipelineMetrics) IncWebhookEvent(eventType, outcome string) {
	if p == nil || p.webhookEvents == nil {
		return
	}
	p.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// IncOrderCreated counts a materialized order.
func (p *PipelineMetrics) IncOrderCreated() {
	if p == nil || p.ordersCreated == nil {
		return
	}
	p.ordersCreated.Inc()
}

// IncStockConflict counts a conditional decrement that found insufficient stock.
func (p *PipelineMetrics) IncStockConflict() {
	if p == nil || p.stockConflicts == nil {
		return
	}
	p.stockConflicts.Inc()
}

// IncAssignment counts a distributor assignment by mode.
func (p *PipelineMetrics) IncAssignment(mode string) {
	if p == nil || p.assignments == nil {
		return
	}
	p.assignments.WithLabelValues(normalizeLabel(mode)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
