package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics структура для метрик Prometheus
type Metrics struct {
	MessagesProcessed    prometheus.Counter
	CommandsProcessed    *prometheus.CounterVec
	ErrorsTotal          prometheus.Counter
	UpdateProcessingTime prometheus.Histogram
	BookingsCreated      *prometheus.CounterVec
}

// NewMetrics регистрирует метрики бота в reg. С nil используется глобальный реестр.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		MessagesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "telegram_bot_messages_processed_total",
			Help: "Total number of messages processed",
		}),

		CommandsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "telegram_bot_commands_processed_total",
			Help: "Total number of commands processed",
		}, []string{"command"}),

		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "telegram_bot_errors_total",
			Help: "Total number of failed updates",
		}),

		UpdateProcessingTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "telegram_bot_update_processing_time_seconds",
			Help:    "Time spent processing updates",
			Buckets: prometheus.DefBuckets,
		}),

		BookingsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "telegram_bot_bookings_created_total",
			Help: "Total number of bookings created",
		}, []string{"room"}),
	}
}
