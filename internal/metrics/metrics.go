package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "prokat"

const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeDenied   = "denied"
	OutcomeError    = "error"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_operations_total",
			Help:      "Catalog engine operations by name and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	catalogItems = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_items",
			Help:      "Items in the catalog by availability state.",
		},
		[]string{"state"},
	)

	sheetsPublishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheets_publish_total",
			Help:      "Google Sheets catalog publishes by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, operations, catalogItems, sheetsPublishes)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncOperation counts one engine operation.
func IncOperation(operation, outcome string) {
	operations.WithLabelValues(operation, outcome).Inc()
}

// SetCatalog publishes the current availability split.
func SetCatalog(total, available int) {
	catalogItems.WithLabelValues("available").Set(float64(available))
	catalogItems.WithLabelValues("rented").Set(float64(total - available))
}

func IncSheetsPublish(outcome string) {
	sheetsPublishes.WithLabelValues(outcome).Inc()
}
