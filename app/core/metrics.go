package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lapomascherj/atmo-core/pkg/metrics"
)

type Metrics struct {
	apiErrors       *prometheus.CounterVec
	extractDuration *prometheus.HistogramVec
	extractErrors   *prometheus.CounterVec
	reconciled      *prometheus.CounterVec
	reconcileErrors *prometheus.CounterVec
}

func NewMetrics(namespace, subsystem string) *Metrics {
	metrics.SetupMetricsManager(namespace, subsystem, prometheus.NewRegistry())
	return &Metrics{
		apiErrors:       metrics.NewCounterVec("api_errors", []string{"path", "code"}),
		extractDuration: metrics.NewHistogramVec("extract_duration_seconds", []string{"model"}),
		extractErrors:   metrics.NewCounterVec("extract_errors", []string{"model"}),
		reconciled:      metrics.NewCounterVec("reconciled_entities", []string{"type", "action"}),
		reconcileErrors: metrics.NewCounterVec("reconcile_errors", []string{"type"}),
	}
}

func (m *Metrics) ApiError(path, code string) {
	if m == nil {
		return
	}
	m.apiErrors.WithLabelValues(path, code).Inc()
}

func (m *Metrics) ExtractObserve(model string, start time.Time) {
	if m == nil {
		return
	}
	m.extractDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ExtractError(model string) {
	if m == nil {
		return
	}
	m.extractErrors.WithLabelValues(model).Inc()
}

func (m *Metrics) Reconciled(entityType, action string) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues(entityType, action).Inc()
}

func (m *Metrics) ReconcileError(entityType string) {
	if m == nil {
		return
	}
	m.reconcileErrors.WithLabelValues(entityType).Inc()
}
