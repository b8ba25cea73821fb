package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the wizard session feature.
// A nil *Metrics is valid and disables collection (unit tests pass nil).
type Metrics struct {
	SessionsCreated prometheus.Counter
	SessionsExpired prometheus.Counter
	StepAdvances    prometheus.Counter
	Verifications   *prometheus.CounterVec
	LiveSessions    prometheus.Gauge
}

// New creates and registers all session metrics.
func New() *Metrics {
	return &Metrics{
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "intake_sessions_created_total",
			Help: "Total number of wizard sessions created",
		}),
		SessionsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "intake_sessions_expired_total",
			Help: "Total number of wizard sessions reclaimed by the idle janitor",
		}),
		StepAdvances: promauto.NewCounter(prometheus.CounterOpts{
			Name: "intake_step_advances_total",
			Help: "Total number of successful step advances",
		}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_precondition_checks_total",
			Help: "Precondition check runs by check kind and outcome",
		}, []string{"check", "outcome"}),
		LiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "intake_sessions_live",
			Help: "Number of wizard sessions currently held in memory",
		}),
	}
}

func (m *Metrics) IncSessionsCreated() {
	if m != nil {
		m.SessionsCreated.Inc()
	}
}

func (m *Metrics) AddSessionsExpired(n int) {
	if m != nil {
		m.SessionsExpired.Add(float64(n))
	}
}

func (m *Metrics) IncStepAdvances() {
	if m != nil {
		m.StepAdvances.Inc()
	}
}

func (m *Metrics) IncVerification(check, outcome string) {
	if m != nil {
		m.Verifications.WithLabelValues(check, outcome).Inc()
	}
}

func (m *Metrics) SetLiveSessions(n int) {
	if m != nil {
		m.LiveSessions.Set(float64(n))
	}
}
