package intake

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeAccepted      = "accepted"
	outcomeConfiguration = "configuration"
	outcomePersistence   = "persistence"
)

// Metrics counts intake outcomes. A nil *Metrics records nothing.
type Metrics struct {
	submissions *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contact",
			Name:      "submissions_total",
			Help:      "Contact form submissions by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.submissions)
	return m
}

func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}
