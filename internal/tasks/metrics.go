package tasks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess = "success"
	outcomeRetry   = "retry"
	outcomeFailed  = "failed"
	outcomeDropped = "dropped"
)

// Metrics counts job outcomes. A nil *Metrics records nothing.
type Metrics struct {
	jobs *prometheus.CounterVec
}

// NewMetrics registers the task counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		jobs: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_tasks_total",
			Help: "Background job outcomes by job name",
		}, []string{"job", "outcome"}),
	}
}

func (m *Metrics) observe(job, outcome string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(job, outcome).Inc()
}
