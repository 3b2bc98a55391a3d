// Package metrics exposes workflow counters through Prometheus.
// Metrics: capa_created_total, capa_status_transitions_total,
// capa_verifications_total, capa_operation_failures_total.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"capaflow/internal/ports"
)

type Prometheus struct {
	registry *prometheus.Registry

	created       *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	verifications *prometheus.CounterVec
	failures      *prometheus.CounterVec
}

var _ ports.WorkflowMetrics = (*Prometheus)(nil)

// NewPrometheus registers the counters on a private registry so several
// instances (tests, commands) never collide on the global one.
func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	factory := func(name string, help string, labels ...string) *prometheus.CounterVec {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
		registry.MustRegister(vec)
		return vec
	}

	return &Prometheus{
		registry:      registry,
		created:       factory("capa_created_total", "CAPA records created.", "type"),
		transitions:   factory("capa_status_transitions_total", "CAPA status transitions.", "from", "to"),
		verifications: factory("capa_verifications_total", "Verification records appended.", "result"),
		failures:      factory("capa_operation_failures_total", "Failed workflow operations.", "operation", "kind"),
	}
}

func (p *Prometheus) CAPACreated(capaType string) {
	p.created.WithLabelValues(capaType).Inc()
}

func (p *Prometheus) StatusChanged(from string, to string) {
	p.transitions.WithLabelValues(from, to).Inc()
}

func (p *Prometheus) VerificationRecorded(result string) {
	p.verifications.WithLabelValues(result).Inc()
}

func (p *Prometheus) OperationFailed(operation string, kind string) {
	p.failures.WithLabelValues(operation, kind).Inc()
}

func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
