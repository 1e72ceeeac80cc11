package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry           *prometheus.Registry
	actionsSubmitted   prometheus.Counter
	targetTransitions  *prometheus.CounterVec
	sweepsTotal        *prometheus.CounterVec
	actionsExpired     prometheus.Counter
	pollsTotal         *prometheus.CounterVec
	commandsDispatched prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	actionsSubmitted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "patchpilot",
		Subsystem: "action",
		Name:      "submitted_total",
		Help:      "Total number of submitted actions.",
	})
	targetTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "patchpilot",
		Subsystem: "target",
		Name:      "transitions_total",
		Help:      "Action target transitions out of pending, by new status.",
	}, []string{"status"})
	sweepsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "patchpilot",
		Subsystem: "sweeper",
		Name:      "runs_total",
		Help:      "Sweeper runs by result.",
	}, []string{"result"})
	actionsExpired := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "patchpilot",
		Subsystem: "action",
		Name:      "expired_total",
		Help:      "Actions canceled by the sweeper.",
	})
	pollsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "patchpilot",
		Subsystem: "poll",
		Name:      "requests_total",
		Help:      "Device polls by outcome.",
	}, []string{"outcome"})
	commandsDispatched := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "patchpilot",
		Subsystem: "poll",
		Name:      "commands_dispatched_total",
		Help:      "Signed commands handed to devices.",
	})

	registry.MustRegister(
		actionsSubmitted,
		targetTransitions,
		sweepsTotal,
		actionsExpired,
		pollsTotal,
		commandsDispatched,
		collectors.NewGoCollector(),
	)
	return &Metrics{
		registry:           registry,
		actionsSubmitted:   actionsSubmitted,
		targetTransitions:  targetTransitions,
		sweepsTotal:        sweepsTotal,
		actionsExpired:     actionsExpired,
		pollsTotal:         pollsTotal,
		commandsDispatched: commandsDispatched,
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncSubmitted() {
	if m == nil {
		return
	}
	m.actionsSubmitted.Inc()
}

func (m *Metrics) IncTargetTransition(status string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.targetTransitions.WithLabelValues(status).Add(float64(n))
}

func (m *Metrics) IncSweep(result string) {
	if m == nil {
		return
	}
	m.sweepsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncExpired() {
	if m == nil {
		return
	}
	m.actionsExpired.Inc()
}

// ObservePoll records one poll; outcome is "commands", "empty", "disabled"
// or "error".
func (m *Metrics) ObservePoll(outcome string, dispatched int) {
	if m == nil {
		return
	}
	m.pollsTotal.WithLabelValues(outcome).Inc()
	if dispatched > 0 {
		m.commandsDispatched.Add(float64(dispatched))
	}
}
