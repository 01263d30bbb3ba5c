package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	writeConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "itam_write_conflicts_total",
		Help: "Rejected mutations by conflict kind.",
	}, []string{"kind"})

	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "itam_mutations_total",
		Help: "Coordinator mutations by operation and outcome.",
	}, []string{"operation", "status"})

	compensationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "itam_engine_compensations_total",
		Help: "Engine rollbacks after a failed durable write.",
	}, []string{"operation"})
)

func recordWriteConflict(kind string) {
	writeConflictsTotal.WithLabelValues(kind).Inc()
}

func recordMutation(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	mutationsTotal.WithLabelValues(operation, status).Inc()
}

func recordCompensation(operation string) {
	compensationsTotal.WithLabelValues(operation).Inc()
}
