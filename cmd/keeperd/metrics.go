package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry *prometheus.Registry

	// transitions counts ledger operations by operation name and
	// outcome (ok or error).
	transitions *prometheus.CounterVec

	// collectedFees tracks arbitration fees awaiting withdrawal.
	collectedFees prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keeperd",
			Name:      "ledger_transitions_total",
			Help:      "Ledger operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		collectedFees: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "keeperd",
			Name:      "collected_fees",
			Help:      "Arbitration fees collected and not yet withdrawn.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.transitions,
		m.collectedFees,
	)
	return m
}

func (m *metrics) observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.transitions.WithLabelValues(op, outcome).Inc()
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
