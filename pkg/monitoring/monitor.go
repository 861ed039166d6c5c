package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	AttemptsScored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_attempts_scored_total",
			Help: "Total number of scored quiz attempts",
		},
		[]string{"quiz", "passed"},
	)

	RecommendationOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_generations_total",
			Help: "Recommendation generation outcomes",
		},
		[]string{"outcome"}, // ready | failed | short_circuit
	)

	ModelCallDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "model_call_duration_seconds",
			Help:    "Duration of external model calls",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(AttemptsScored)
	prometheus.MustRegister(RecommendationOutcomes)
	prometheus.MustRegister(ModelCallDuration)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
