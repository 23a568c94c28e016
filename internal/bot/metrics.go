package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics структура для метрик Prometheus
type Metrics struct {
	MessagesProcessed    prometheus.Counter
	CommandsProcessed    prometheus.Counter
	ErrorsTotal          prometheus.Counter
	RateLimited          prometheus.Counter
	UpdateProcessingTime prometheus.Histogram
}

// NewMetrics регистрирует метрики бота в reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MessagesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "prokat_bot_messages_processed_total",
			Help: "Total number of chat messages handled",
		}),
		CommandsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "prokat_bot_commands_processed_total",
			Help: "Total number of slash commands handled",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "prokat_bot_errors_total",
			Help: "Total number of failed or panicked updates",
		}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "prokat_bot_rate_limited_total",
			Help: "Total number of messages rejected by the rate limit",
		}),
		UpdateProcessingTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prokat_bot_update_processing_time_seconds",
			Help:    "Time spent processing updates",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
