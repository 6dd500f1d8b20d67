package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "possync_records_total",
			Help: "Outbox records by drain result",
		},
		[]string{"result"}, // synced|failed
	)

	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "possync_cycles_total",
			Help: "Sync cycles by outcome",
		},
		[]string{"outcome"}, // drained|aborted|offline|noop|skipped
	)

	PendingRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "possync_pending_records",
			Help: "Outbox records still waiting for delivery",
		},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		RecordsTotal,
		CyclesTotal,
		PendingRecords,
	)
}
