package observ

import (
	"time"

	"github.com/aq2208/gcart-api/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the domain collectors. HTTP request metrics live in the
// middleware package.
type Metrics struct {
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	relay        *prometheus.CounterVec
	cartEvents   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		toolCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cart_tool_calls_total",
				Help: "Tool calls by tool and result status",
			},
			[]string{"tool", "status"},
		),
		toolDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cart_tool_call_duration_ms",
				Help:    "Tool call duration in ms",
				Buckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250},
			},
			[]string{"tool"},
		),
		relay: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_webhook_total",
				Help: "WhatsApp webhook deliveries by outcome",
			},
			[]string{"status"},
		),
		cartEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cart_events_total",
				Help: "Cart events by direction and result",
			},
			[]string{"direction", "result"},
		),
	}
}

func (m *Metrics) ObserveToolCall(tool string, status usecase.Status, d time.Duration) {
	m.toolCalls.WithLabelValues(tool, string(status)).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(float64(d.Microseconds()) / 1000)
}

func (m *Metrics) ObserveWebhook(status string) {
	m.relay.WithLabelValues(status).Inc()
}

// ObserveCartEvent counts published ("out") and consumed ("in") cart events.
func (m *Metrics) ObserveCartEvent(direction string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.cartEvents.WithLabelValues(direction, result).Inc()
}

var _ usecase.CallObserver = (*Metrics)(nil)
