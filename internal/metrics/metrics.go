// Package metrics exposes the Prometheus collectors of the turn pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "jobassist"

// Metrics groups the collectors shared by the orchestrator and its adapters.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	turnDuration      *prometheus.HistogramVec
	turns             *prometheus.CounterVec
	handOffs          *prometheus.CounterVec
	lookupCalls       *prometheus.CounterVec
	deliveryFailures  *prometheus.CounterVec
	duplicatesDropped prometheus.Counter
	turnsInFlight     prometheus.Gauge
}

var (
	defaultOnce   sync.Once
	sharedMetrics *Metrics
)

// Default returns the metrics registered with the global Prometheus
// registry. Collectors are created once so repeated construction does not
// panic on duplicate registration.
func Default() *Metrics {
	defaultOnce.Do(func() {
		sharedMetrics = MustNew(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNew constructs Metrics registered with reg. Tests pass a fresh
// prometheus.NewRegistry(). Registration errors other than duplicates panic.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		turnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "turn_duration_seconds",
			Help:      "Time spent processing one inbound event, delivery excluded.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"agent", "outcome"}),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "turns_total",
			Help:      "Inbound events processed, by owning agent after the turn and outcome.",
		}, []string{"agent", "outcome"}),
		handOffs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "handoffs_total",
			Help:      "Agent hand-offs applied by the router.",
		}, []string{"from", "to"}),
		lookupCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lookup",
			Name:      "calls_total",
			Help:      "Calls to the job lookup service by tool and result.",
		}, []string{"tool", "result"}),
		deliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "failures_total",
			Help:      "Replies the outbound channel rejected or timed out on.",
		}, []string{"channel"}),
		duplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "duplicate_events_total",
			Help:      "Inbound events dropped because their message id was already processed.",
		}),
		turnsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "turns_in_flight",
			Help:      "Turns currently being processed.",
		}),
	}

	m.turnDuration = register(reg, m.turnDuration)
	m.turns = register(reg, m.turns)
	m.handOffs = register(reg, m.handOffs)
	m.lookupCalls = register(reg, m.lookupCalls)
	m.deliveryFailures = register(reg, m.deliveryFailures)
	m.duplicatesDropped = register(reg, m.duplicatesDropped)
	m.turnsInFlight = register(reg, m.turnsInFlight)
	return m
}

// register adds c to reg, reusing an identical collector that is already
// registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveTurn records a finished turn.
func (m *Metrics) ObserveTurn(agent, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(agent, outcome).Inc()
	m.turnDuration.WithLabelValues(agent, outcome).Observe(d.Seconds())
}

// IncHandOff counts a hand-off between two agents.
func (m *Metrics) IncHandOff(from, to string) {
	if m == nil {
		return
	}
	m.handOffs.WithLabelValues(from, to).Inc()
}

// IncLookup counts a lookup call by tool and result.
func (m *Metrics) IncLookup(tool, result string) {
	if m == nil {
		return
	}
	m.lookupCalls.WithLabelValues(tool, result).Inc()
}

// IncDeliveryFailure counts a failed outbound reply.
func (m *Metrics) IncDeliveryFailure(channel string) {
	if m == nil {
		return
	}
	m.deliveryFailures.WithLabelValues(channel).Inc()
}

// IncDuplicate counts a dropped duplicate event.
func (m *Metrics) IncDuplicate() {
	if m == nil {
		return
	}
	m.duplicatesDropped.Inc()
}

// TurnStarted increments the in-flight gauge and returns its decrement.
func (m *Metrics) TurnStarted() func() {
	if m == nil {
		return func() {}
	}
	m.turnsInFlight.Inc()
	return m.turnsInFlight.Dec
}
