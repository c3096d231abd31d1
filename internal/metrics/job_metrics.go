package metrics

import (
	"github.com/officio/Async-billing-service/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// JobMetrics интерфейс для метрик задач
type JobMetrics interface {
	IncJobCreated(jobType string)
	IncJobStatus(status, jobType string)
	IncWorkerNotifyFailure()
	ObserveJobWait(seconds float64, outcome string)
}

type jobMetrics struct {
	log                  *logger.Logger
	jobsCreated          *prometheus.CounterVec
	jobsStatus           *prometheus.CounterVec
	workerNotifyFailures prometheus.Counter
	jobWaitSeconds       *prometheus.HistogramVec
}

// NewJobMetrics создает новые метрики задач
func NewJobMetrics(registry *prometheus.Registry, log *logger.Logger) JobMetrics {
	jobsCreated := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_created_total",
			Help: "The total number of created jobs",
		},
		[]string{"type"},
	)

	jobsStatus := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_status_total",
			Help: "The total number of job transitions by status",
		},
		[]string{"status", "type"},
	)

	workerNotifyFailures := promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "worker_notify_failures_total",
			Help: "The total number of failed best-effort worker notifications",
		},
	)

	jobWaitSeconds := promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_wait_seconds",
			Help:    "Time a client spent waiting for a job outcome",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s .. 64s
		},
		[]string{"outcome"},
	)

	return &jobMetrics{
		log:                  log,
		jobsCreated:          jobsCreated,
		jobsStatus:           jobsStatus,
		workerNotifyFailures: workerNotifyFailures,
		jobWaitSeconds:       jobWaitSeconds,
	}
}

// IncJobCreated увеличивает счетчик созданных задач
func (m *jobMetrics) IncJobCreated(jobType string) {
	m.jobsCreated.WithLabelValues(jobType).Inc()
}

// IncJobStatus увеличивает счетчик переходов задач по статусам
func (m *jobMetrics) IncJobStatus(status, jobType string) {
	m.jobsStatus.WithLabelValues(status, jobType).Inc()
}

// IncWorkerNotifyFailure увеличивает счетчик неудачных уведомлений воркера
func (m *jobMetrics) IncWorkerNotifyFailure() {
	m.workerNotifyFailures.Inc()
}

// ObserveJobWait фиксирует время ожидания результата клиентом
func (m *jobMetrics) ObserveJobWait(seconds float64, outcome string) {
	m.jobWaitSeconds.WithLabelValues(outcome).Observe(seconds)
}
