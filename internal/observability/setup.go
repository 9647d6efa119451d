package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

var (
	// Global logger instance
	Logger *zap.Logger

	// Metrics
	relayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_requests_total",
			Help: "Total number of AI relay requests",
		},
		[]string{"status"},
	)

	expiryNotificationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "expiry_notifications_total",
			Help: "Total number of access-expired notifications sent",
		},
	)

	broadcastMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_messages_total",
			Help: "Total number of broadcast deliveries",
		},
		[]string{"status"},
	)

	messageProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "message_processing_duration_seconds",
			Help:    "Time spent processing messages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
)

// Init sets up the zap access logger, the Prometheus registry with its
// /metrics endpoint, and a tracer provider for downstream instrumentation.
func Init(ctx context.Context, metricsAddr string) error {
	var err error
	Logger, err = zap.NewProduction()
	if err != nil {
		return err
	}

	prometheus.MustRegister(relayRequestsTotal)
	prometheus.MustRegister(expiryNotificationsTotal)
	prometheus.MustRegister(broadcastMessagesTotal)
	prometheus.MustRegister(messageProcessingDuration)

	tp := trace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			<-ctx.Done()
			_ = server.Close()
		}()
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			Logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return nil
}

// RecordRelayRequest counts one relay call by outcome ("ok" or "fallback").
func RecordRelayRequest(status string) {
	relayRequestsTotal.WithLabelValues(status).Inc()
}

// RecordExpiryNotification counts one sweep notification.
func RecordExpiryNotification() {
	expiryNotificationsTotal.Inc()
}

// RecordBroadcast counts one broadcast delivery by outcome ("sent" or "failed").
func RecordBroadcast(status string) {
	broadcastMessagesTotal.WithLabelValues(status).Inc()
}

// StartMessageProcessing returns a stop function that records the elapsed
// time under the final outcome status.
func StartMessageProcessing() func(status string) {
	start := time.Now()
	return func(status string) {
		messageProcessingDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
}
