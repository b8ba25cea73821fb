// Package metrics exposes Prometheus metrics for submission assembly.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks submission outcomes. All methods are nil-safe so unit
// tests can skip registration entirely.
type Metrics struct {
	Submissions    *prometheus.CounterVec
	PhotoUploads   *prometheus.CounterVec
	BackupFailures prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_submissions_total",
			Help: "Submission attempts by outcome.",
		}, []string{"outcome"}),
		PhotoUploads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_photo_uploads_total",
			Help: "Photo uploads by outcome.",
		}, []string{"outcome"}),
		BackupFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "intake_backup_failures_total",
			Help: "Best-effort submission backups that failed.",
		}),
	}
}

func (m *Metrics) IncSubmission(outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncPhotoUpload(outcome string) {
	if m == nil {
		return
	}
	m.PhotoUploads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncBackupFailure() {
	if m == nil {
		return
	}
	m.BackupFailures.Inc()
}
