package metrics

import (
	"github.com/officio/Async-billing-service/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BillingMetrics интерфейс для метрик биллинга
type BillingMetrics interface {
	IncWebhookEvent(eventType, outcome string)
	IncVerify(outcome string)
}

type billingMetrics struct {
	log           *logger.Logger
	webhookEvents *prometheus.CounterVec
	verifyTotal   *prometheus.CounterVec
}

// NewBillingMetrics создает новые метрики биллинга
func NewBillingMetrics(registry *prometheus.Registry, log *logger.Logger) BillingMetrics {
	webhookEvents := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhook_events_total",
			Help: "The total number of billing webhook events by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	verifyTotal := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_verify_total",
			Help: "The total number of manual billing reconciliations",
		},
		[]string{"outcome"},
	)

	return &billingMetrics{
		log:           log,
		webhookEvents: webhookEvents,
		verifyTotal:   verifyTotal,
	}
}

// IncWebhookEvent увеличивает счетчик вебхук-событий
func (m *billingMetrics) IncWebhookEvent(eventType, outcome string) {
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// IncVerify увеличивает счетчик ручных сверок
func (m *billingMetrics) IncVerify(outcome string) {
	m.verifyTotal.WithLabelValues(outcome).Inc()
}
