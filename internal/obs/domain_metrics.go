package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SessionsStartedTotal counts negotiation sessions by checkout surface.
	SessionsStartedTotal *prometheus.CounterVec
	// ReadinessTotal counts readiness probe results.
	ReadinessTotal *prometheus.CounterVec
	// RoundTripTotal counts backend round trips by originating intent.
	RoundTripTotal *prometheus.CounterVec
	// RoundTripLatency records backend round trip latency in milliseconds.
	RoundTripLatency *prometheus.HistogramVec
	// OutcomeTotal counts terminal session outcomes.
	OutcomeTotal *prometheus.CounterVec
	// CallbackReplayTotal counts provider callbacks rejected as replays.
	CallbackReplayTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SessionsStartedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Count of negotiation sessions started by surface.",
		}, []string{"surface"})
		ReadinessTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readiness_total",
			Help:      "Count of readiness probe results.",
		}, []string{"result"})
		RoundTripTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_round_trip_total",
			Help:      "Count of merchant backend round trips by intent and result.",
		}, []string{"intent", "result"})
		RoundTripLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_round_trip_duration_ms",
			Help:      "Latency of merchant backend round trips in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"intent"})
		OutcomeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_outcome_total",
			Help:      "Count of terminal session outcomes.",
		}, []string{"status"})
		CallbackReplayTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_replay_total",
			Help:      "Number of provider callbacks rejected as duplicates.",
		})

		mustRegisterCollector(reg, SessionsStartedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SessionsStartedTotal = v
			}
		})
		mustRegisterCollector(reg, ReadinessTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ReadinessTotal = v
			}
		})
		mustRegisterCollector(reg, RoundTripTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RoundTripTotal = v
			}
		})
		mustRegisterCollector(reg, RoundTripLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				RoundTripLatency = v
			}
		})
		mustRegisterCollector(reg, OutcomeTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OutcomeTotal = v
			}
		})
		mustRegisterCollector(reg, CallbackReplayTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				CallbackReplayTotal = v
			}
		})
	})
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
