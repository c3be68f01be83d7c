package enrichment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raged_enrichment_tasks_claimed_total",
		Help: "Tasks leased to workers.",
	})

	tasksCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raged_enrichment_tasks_completed_total",
		Help: "Tasks completed with a submitted result.",
	})

	tasksFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raged_enrichment_tasks_failed_total",
		Help: "Worker-reported task failures, by finality.",
	}, []string{"final"})

	tasksRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raged_enrichment_tasks_recovered_total",
		Help: "Tasks returned to pending by the stale lease sweep.",
	})
)
