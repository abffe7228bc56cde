package registry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	persistTotal       *prometheus.CounterVec
	rotationTotal      *prometheus.CounterVec
	rollbackTotal      *prometheus.CounterVec
	auditWriteFailures prometheus.Counter
	continuityAlarm    *prometheus.GaugeVec

	metricsOnce       sync.Once
	metricsRegistered bool
)

// InitMetrics registers the registry's Prometheus metrics. Call once at
// startup when metrics are enabled; recording is a no-op otherwise.
func InitMetrics() {
	metricsOnce.Do(func() {
		persistTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credvault_persist_total",
				Help: "Total number of secret persist operations",
			},
			[]string{"scope", "outcome"},
		)

		rotationTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credvault_rotation_total",
				Help: "Total number of provider credential rotations",
			},
			[]string{"provider", "outcome"},
		)

		rollbackTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credvault_rollback_total",
				Help: "Total number of rotation rollback attempts",
			},
			[]string{"provider", "outcome"},
		)

		auditWriteFailures = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credvault_audit_write_failures_total",
				Help: "Total number of audit writes that forced a secret mutation to be retracted",
			},
		)

		continuityAlarm = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "credvault_continuity_alarm",
				Help: "Set to 1 while the active credential version for a provider is uncertain after a failed rollback",
			},
			[]string{"provider"},
		)

		metricsRegistered = true
	})
}

func recordPersist(scope, outcome string) {
	if metricsRegistered {
		persistTotal.WithLabelValues(scope, outcome).Inc()
	}
}

func recordRotation(provider, outcome string) {
	if metricsRegistered {
		rotationTotal.WithLabelValues(provider, outcome).Inc()
	}
}

func recordRollback(provider, outcome string) {
	if metricsRegistered {
		rollbackTotal.WithLabelValues(provider, outcome).Inc()
	}
}

func recordAuditWriteFailure() {
	if metricsRegistered {
		auditWriteFailures.Inc()
	}
}

func setContinuityAlarm(provider string) {
	if metricsRegistered {
		continuityAlarm.WithLabelValues(provider).Set(1)
	}
}

// ClearContinuityAlarm drops the standing alarm gauge for a provider, called
// when an operator resolves the underlying incident.
func ClearContinuityAlarm(provider string) {
	if metricsRegistered {
		continuityAlarm.WithLabelValues(provider).Set(0)
	}
}
