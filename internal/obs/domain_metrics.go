package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutSessionTotal counts checkout session attempts by result.
	CheckoutSessionTotal *prometheus.CounterVec
	// StripeWebhookTotal counts inbound Stripe webhooks by event type and outcome.
	StripeWebhookTotal *prometheus.CounterVec
	// BookingMaterializeTotal counts appointment writes by source and result.
	BookingMaterializeTotal *prometheus.CounterVec
	// RecoveryAlertsTotal counts recovery alert deliveries.
	RecoveryAlertsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutSessionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_session_total",
			Help:      "Count of checkout session creation outcomes.",
		}, []string{"result"})
		StripeWebhookTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stripe_webhook_total",
			Help:      "Count of processed Stripe webhooks by event and outcome.",
		}, []string{"event", "result"})
		BookingMaterializeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_materialize_total",
			Help:      "Count of appointment materialisations by source and result.",
		}, []string{"source", "result"})
		RecoveryAlertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_recovery_alerts_total",
			Help:      "Count of recovery alert deliveries by result.",
		}, []string{"result"})

		mustRegisterCollector(reg, CheckoutSessionTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutSessionTotal = v
			}
		})
		mustRegisterCollector(reg, StripeWebhookTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				StripeWebhookTotal = v
			}
		})
		mustRegisterCollector(reg, BookingMaterializeTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BookingMaterializeTotal = v
			}
		})
		mustRegisterCollector(reg, RecoveryAlertsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RecoveryAlertsTotal = v
			}
		})
	})
}

// CountCheckoutSession records a checkout outcome when metrics are registered.
func CountCheckoutSession(result string) {
	if CheckoutSessionTotal != nil {
		CheckoutSessionTotal.WithLabelValues(result).Inc()
	}
}

// CountStripeWebhook records a webhook outcome when metrics are registered.
func CountStripeWebhook(event, result string) {
	if StripeWebhookTotal != nil {
		StripeWebhookTotal.WithLabelValues(event, result).Inc()
	}
}

// CountMaterialize records an appointment write when metrics are registered.
func CountMaterialize(source, result string) {
	if BookingMaterializeTotal != nil {
		BookingMaterializeTotal.WithLabelValues(source, result).Inc()
	}
}

// CountRecoveryAlert records a recovery alert delivery when metrics are registered.
func CountRecoveryAlert(result string) {
	if RecoveryAlertsTotal != nil {
		RecoveryAlertsTotal.WithLabelValues(result).Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
