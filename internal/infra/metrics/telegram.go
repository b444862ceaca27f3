package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(telegramCallSeconds, limiterDeniedTotal) }

var telegramCallSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "telegram_call_duration_seconds",
		Help:    "Latency of Telegram API calls, labeled by method and success.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "success"},
)

var limiterDeniedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limiter_denied_total",
		Help: "Reservations denied by the local rate limiter, labeled by action.",
	},
	[]string{"action"},
)

func ObserveTelegramCall(method string, seconds float64, success bool) {
	s := "false"
	if success {
		s = "true"
	}
	telegramCallSeconds.WithLabelValues(norm(method), s).Observe(seconds)
}

func IncLimiterDenied(action string) {
	limiterDeniedTotal.WithLabelValues(norm(action)).Inc()
}
