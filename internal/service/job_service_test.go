package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/officio/Async-billing-service/internal/domain"
	"github.com/officio/Async-billing-service/internal/kafka"
	"github.com/officio/Async-billing-service/internal/repository"
	"github.com/officio/Async-billing-service/pkg/logger"
)

// stubNotifier считает уведомления и опционально отвечает ошибкой.
type stubNotifier struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (n *stubNotifier) NotifyJobCreated(ctx context.Context, notification domain.WorkerNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return n.err
}

func (n *stubNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

// nopJobMetrics метрики-заглушка для тестов.
type nopJobMetrics struct {
	mu             sync.Mutex
	notifyFailures int
}

func (m *nopJobMetrics) IncJobCreated(jobType string)     {}
func (m *nopJobMetrics) IncJobStatus(status, jobType string) {}
func (m *nopJobMetrics) IncWorkerNotifyFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifyFailures++
}
func (m *nopJobMetrics) ObserveJobWait(seconds float64, outcome string) {}

func newTestJobService(t *testing.T, notifier *stubNotifier) (JobService, *repository.InMemoryJobRepository, *nopJobMetrics) {
	t.Helper()
	log := logger.New(logger.ERROR)
	repo := repository.NewInMemoryJobRepository(log)
	m := &nopJobMetrics{}
	poller := NewPoller(repo, time.Millisecond, 5, log)
	svc := NewJobService(repo, notifier, nil, kafka.NopProducer{}, m, poller, log)
	return svc, repo, m
}

func TestEnqueueCreatesPendingJobAndNotifies(t *testing.T) {
	ctx := context.Background()
	notifier := &stubNotifier{}
	svc, repo, _ := newTestJobService(t, notifier)
	tenantID := uuid.New()

	job, err := svc.Enqueue(ctx, tenantID, "user-1", domain.JobRequest{
		Type:    domain.JobTypeCreateQuote,
		Payload: json.RawMessage(`{"amount":100}`),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, tenantID, job.TenantID)
	assert.Equal(t, "user-1", job.CreatedBy)
	assert.Equal(t, 1, notifier.callCount())

	stored, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, stored.Status)
}

func TestEnqueueSwallowsNotifyFailure(t *testing.T) {
	ctx := context.Background()
	notifier := &stubNotifier{err: errors.New("worker unreachable")}
	svc, repo, m := newTestJobService(t, notifier)

	// Недоступность воркера не ошибка постановки: задача надежно
	// записана и будет подобрана сканированием очереди
	job, err := svc.Enqueue(ctx, uuid.New(), "user-1", domain.JobRequest{
		Type:    domain.JobTypeSendDocument,
		Payload: json.RawMessage(`{"document_id":"doc-1"}`),
	})

	require.NoError(t, err)

	stored, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, stored.Status)
	assert.Equal(t, 1, m.notifyFailures)
}

// failingJobRepo отвечает ошибкой на любую вставку.
type failingJobRepo struct {
	*repository.InMemoryJobRepository
}

func (r *failingJobRepo) Create(ctx context.Context, job *domain.Job) error {
	return errors.New("disk full")
}

func TestEnqueueReportsDurabilityFailure(t *testing.T) {
	ctx := context.Background()
	log := logger.New(logger.ERROR)
	repo := &failingJobRepo{repository.NewInMemoryJobRepository(log)}
	notifier := &stubNotifier{}
	poller := NewPoller(repo, time.Millisecond, 5, log)
	svc := NewJobService(repo, notifier, nil, kafka.NopProducer{}, &nopJobMetrics{}, poller, log)

	_, err := svc.Enqueue(ctx, uuid.New(), "user-1", domain.JobRequest{
		Type:    domain.JobTypeCreateInvoice,
		Payload: json.RawMessage(`{}`),
	})

	// Если задача не записана надежно, клиент обязан узнать об этом
	require.ErrorIs(t, err, domain.ErrDurabilityFailure)
	// И воркер не уведомляется о задаче, которой нет
	assert.Equal(t, 0, notifier.callCount())
}

func TestWaitReturnsCompletedResult(t *testing.T) {
	ctx := context.Background()
	notifier := &stubNotifier{}
	svc, _, _ := newTestJobService(t, notifier)

	job, err := svc.Enqueue(ctx, uuid.New(), "user-1", domain.JobRequest{
		Type:    domain.JobTypeCreateInvoice,
		Payload: json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	// Воркер завершает задачу параллельно с ожиданием
	go func() {
		time.Sleep(5 * time.Millisecond)
		if _, err := svc.Claim(context.Background(), job.ID, "worker-1"); err != nil {
			return
		}
		_, _ = svc.ApplyWorkerResult(context.Background(), job.ID, domain.JobStatusCompleted,
			[]byte(`{"invoice_id":"inv-7"}`), "")
	}()

	outcome, err := svc.Wait(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, PollCompleted, outcome.Kind)
	assert.JSONEq(t, `{"invoice_id":"inv-7"}`, string(outcome.Result))
}

func TestWaitTimesOutWhileJobStillPending(t *testing.T) {
	ctx := context.Background()
	notifier := &stubNotifier{}
	svc, repo, _ := newTestJobService(t, notifier)

	job, err := svc.Enqueue(ctx, uuid.New(), "user-1", domain.JobRequest{
		Type:    domain.JobTypeCreateDelivery,
		Payload: json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	outcome, err := svc.Wait(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, PollTimeout, outcome.Kind)

	// Таймаут клиента не отменяет выполнение: задача жива
	stored, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, stored.Status)
}

func TestClaimLosesRaceOnce(t *testing.T) {
	ctx := context.Background()
	notifier := &stubNotifier{}
	svc, _, _ := newTestJobService(t, notifier)

	job, err := svc.Enqueue(ctx, uuid.New(), "user-1", domain.JobRequest{
		Type:    domain.JobTypeCreateInvoice,
		Payload: json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	claimed, err := svc.Claim(ctx, job.ID, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, claimed.Status)

	_, err = svc.Claim(ctx, job.ID, "worker-2")
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
}

func TestApplyWorkerResultIsIdempotent(t *testing.T) {
	ctx := context.Background()
	notifier := &stubNotifier{}
	svc, _, _ := newTestJobService(t, notifier)

	job, err := svc.Enqueue(ctx, uuid.New(), "user-1", domain.JobRequest{
		Type:    domain.JobTypeCreateInvoice,
		Payload: json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	_, err = svc.Claim(ctx, job.ID, "worker-1")
	require.NoError(t, err)

	first, err := svc.ApplyWorkerResult(ctx, job.ID, domain.JobStatusCompleted, []byte(`{"n":1}`), "")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, first.Status)

	// Повторная доставка того же результата это no-op
	second, err := svc.ApplyWorkerResult(ctx, job.ID, domain.JobStatusCompleted, []byte(`{"n":1}`), "")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, second.Status)
	assert.JSONEq(t, `{"n":1}`, string(second.Result))
}

func TestApplyWorkerResultRejectsNonTerminalStatus(t *testing.T) {
	ctx := context.Background()
	notifier := &stubNotifier{}
	svc, _, _ := newTestJobService(t, notifier)

	job, err := svc.Enqueue(ctx, uuid.New(), "user-1", domain.JobRequest{
		Type:    domain.JobTypeCreateInvoice,
		Payload: json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	_, err = svc.ApplyWorkerResult(ctx, job.ID, domain.JobStatusProcessing, nil, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}
