// Package metrics содержит prometheus-метрики сервиса.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics - все коллекторы сервиса. Методы безопасны для nil-получателя,
// так что сервисы в тестах работают без метрик.
type Metrics struct {
	SubmissionsTotal   *prometheus.CounterVec // type, status
	VotesTotal         *prometheus.CounterVec // impact
	CommentsTotal      *prometheus.CounterVec // role
	UploadsTotal       *prometheus.CounterVec // result: pending, published, reverted, aborted, error
	EmailsTotal        *prometheus.CounterVec // kind, result
	EmailSendDuration  *prometheus.HistogramVec
	CascadeStepsTotal  *prometheus.CounterVec // step, result
	DigestEventsQueued prometheus.Counter

	registry *prometheus.Registry
}

// New создает метрики и регистрирует их в собственном реестре.
func New() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedback_submissions_total",
		Help: "Total number of created feedback items by type and visibility",
	}, []string{"type", "status"})
	m.VotesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedback_votes_total",
		Help: "Total number of votes by impact",
	}, []string{"impact"})
	m.CommentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedback_comments_total",
		Help: "Total number of comments and replies by author role",
	}, []string{"role"})
	m.UploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedback_uploads_total",
		Help: "Attachment lifecycle transitions by result",
	}, []string{"result"})
	m.EmailsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedback_emails_total",
		Help: "Total number of email send attempts by kind and result",
	}, []string{"kind", "result"})
	m.EmailSendDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feedback_email_send_duration_seconds",
		Help:    "Time taken to hand an email to the provider",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	}, []string{"kind"})
	m.CascadeStepsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedback_cascade_steps_total",
		Help: "Delete cascade steps by step kind and result",
	}, []string{"step", "result"})
	m.DigestEventsQueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feedback_digest_events_enqueued_total",
		Help: "Total number of weekly digest events put on the queue",
	})

	for _, c := range []prometheus.Collector{
		m.SubmissionsTotal, m.VotesTotal, m.CommentsTotal, m.UploadsTotal,
		m.EmailsTotal, m.EmailSendDuration, m.CascadeStepsTotal, m.DigestEventsQueued,
		collectors.NewGoCollector(),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return m, nil
}

// Handler отдает метрики в формате prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Submission(typ, status string) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(typ, status).Inc()
}

func (m *Metrics) Vote(impact string) {
	if m == nil {
		return
	}
	m.VotesTotal.WithLabelValues(impact).Inc()
}

func (m *Metrics) Comment(role string) {
	if m == nil {
		return
	}
	m.CommentsTotal.WithLabelValues(role).Inc()
}

func (m *Metrics) Upload(result string) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(result).Inc()
}

// Email учитывает попытку отправки и ее длительность.
func (m *Metrics) Email(kind string, took time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.EmailsTotal.WithLabelValues(kind, result).Inc()
	m.EmailSendDuration.WithLabelValues(kind).Observe(took.Seconds())
}

func (m *Metrics) CascadeStep(step string, err error) {
	if m == nil {
		return
	}
	result := "done"
	if err != nil {
		result = "failed"
	}
	m.CascadeStepsTotal.WithLabelValues(step, result).Inc()
}

func (m *Metrics) DigestEnqueued(n int) {
	if m == nil {
		return
	}
	m.DigestEventsQueued.Add(float64(n))
}
