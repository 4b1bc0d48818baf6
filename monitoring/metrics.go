package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	bookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_transitions_total",
			Help: "Total booking draft state transitions",
		},
		[]string{"from", "to"},
	)

	bookingFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_failures_total",
			Help: "Total booking failures by kind",
		},
		[]string{"kind"},
	)

	activeDrafts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booking_active_drafts_total",
			Help: "Current number of live booking drafts",
		},
	)

	reconcileOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_reconcile_outcomes_total",
			Help: "Total credit purchase reconciliation outcomes",
		},
		[]string{"state"},
	)

	reconcileAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "credit_reconcile_attempts",
			Help:    "Status polls needed per reconciliation",
			Buckets: prometheus.LinearBuckets(1, 1, 5),
		},
	)

	authorizeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_authorize_duration_seconds",
			Help:    "Duration of processor card authorizations",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"provider"},
	)
)

type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}

	// Start metrics collection
	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx := context.Background()
		m.collectDraftMetrics(ctx)
	}
}

func (m *Monitor) collectDraftMetrics(ctx context.Context) {
	keys, _ := m.redis.Keys(ctx, "booking:draft:*").Result()
	activeDrafts.Set(float64(len(keys)))
}

// TrackTransition records a booking draft state transition.
func (m *Monitor) TrackTransition(from, to string) {
	bookingTransitions.WithLabelValues(from, to).Inc()
}

// TrackBookingFailure records a booking failure by kind
// (validation, declined, unavailable, sold_out, issuance).
func (m *Monitor) TrackBookingFailure(kind string) {
	bookingFailures.WithLabelValues(kind).Inc()
}

// TrackReconcileOutcome records a reconciliation terminal state and how
// many polls it took.
func (m *Monitor) TrackReconcileOutcome(state string, attempts int) {
	reconcileOutcomes.WithLabelValues(state).Inc()
	reconcileAttempts.Observe(float64(attempts))
}

// TrackAuthorize records a processor authorization duration.
func (m *Monitor) TrackAuthorize(provider string, duration time.Duration) {
	authorizeDuration.WithLabelValues(provider).Observe(duration.Seconds())
}
