package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Pricing
	PriceResolutions *prometheus.CounterVec

	// Legacy price migration
	MigrationItems *prometheus.CounterVec

	// Checkout
	Checkouts *prometheus.CounterVec

	// Orion lab system
	OrionRequests *prometheus.CounterVec
	OrionLatency  *prometheus.HistogramVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// New creates the application metrics and registers them with reg.
// A nil registerer leaves them unregistered, which is what tests want.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PriceResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_resolutions_total",
			Help:      "Price resolutions by outcome (tariff, legacy, not_found, error)",
		}, []string{"source"}),
		MigrationItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tariff_migration_items_total",
			Help:      "Legacy price migration items by outcome",
		}, []string{"outcome"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by outcome and payment method",
		}, []string{"outcome", "method"}),
		OrionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orion_requests_total",
			Help:      "Requests sent to the Orion lab system",
		}, []string{"operation", "status"}),
		OrionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "orion_request_duration_seconds",
			Help:      "Duration of Orion requests",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
		DatabaseOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.PriceResolutions,
			m.MigrationItems,
			m.Checkouts,
			m.OrionRequests,
			m.OrionLatency,
			m.DatabaseOperations,
		)
	}
	return m
}

// NewNop returns unregistered metrics.
func NewNop() *Metrics {
	return New("test", nil)
}
