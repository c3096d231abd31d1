package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/officio/Async-billing-service/internal/domain"
	"github.com/officio/Async-billing-service/internal/kafka"
	"github.com/officio/Async-billing-service/internal/metrics"
	"github.com/officio/Async-billing-service/internal/notify"
	"github.com/officio/Async-billing-service/internal/realtime"
	"github.com/officio/Async-billing-service/internal/repository"
	"github.com/officio/Async-billing-service/pkg/logger"
)

// JobService интерфейс сервиса отложенных задач
type JobService interface {
	// Enqueue надежно сохраняет задачу и best-effort уведомляет воркера.
	// Успешный возврат гарантирует только "работа надежно поставлена",
	// не "работа начала выполняться".
	Enqueue(ctx context.Context, tenantID uuid.UUID, userID string, req domain.JobRequest) (*domain.Job, error)

	// Get возвращает задачу арендатора.
	Get(ctx context.Context, tenantID, jobID uuid.UUID) (*domain.Job, error)

	// List возвращает постраничный список задач арендатора.
	List(ctx context.Context, filter domain.JobListFilter) ([]domain.Job, int, error)

	// Wait ожидает терминального статуса задачи чистым опросом.
	Wait(ctx context.Context, jobID uuid.UUID) (PollOutcome, error)

	// WaitWithNotify ожидает через realtime-подписку как быстрый путь;
	// поллер продолжает работать как страховка с таймаутом.
	WaitWithNotify(ctx context.Context, jobID uuid.UUID) (PollOutcome, error)

	// Claim атомарно захватывает задачу для воркера.
	Claim(ctx context.Context, jobID uuid.UUID, workerID string) (*domain.Job, error)

	// ApplyWorkerResult применяет терминальный результат от воркера.
	// Повторная доставка результата для терминальной задачи это no-op.
	ApplyWorkerResult(ctx context.Context, jobID uuid.UUID, status domain.JobStatus, result []byte, errorMessage string) (*domain.Job, error)
}

type jobService struct {
	repo     repository.JobRepository
	notifier notify.WorkerNotifier
	realtime *realtime.RedisNotifier
	producer kafka.Producer
	metrics  metrics.JobMetrics
	poller   *Poller
	log      *logger.Logger
}

// NewJobService создает новый сервис задач.
// realtime может быть nil: тогда ожидание работает чистым опросом.
func NewJobService(
	repo repository.JobRepository,
	notifier notify.WorkerNotifier,
	rt *realtime.RedisNotifier,
	producer kafka.Producer,
	m metrics.JobMetrics,
	poller *Poller,
	log *logger.Logger,
) JobService {
	return &jobService{
		repo:     repo,
		notifier: notifier,
		realtime: rt,
		producer: producer,
		metrics:  m,
		poller:   poller,
		log:      log,
	}
}

// Enqueue надежно сохраняет задачу и best-effort уведомляет воркера.
func (s *jobService) Enqueue(ctx context.Context, tenantID uuid.UUID, userID string, req domain.JobRequest) (*domain.Job, error) {
	now := time.Now().UTC()
	job := &domain.Job{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Type:      req.Type,
		Status:    domain.JobStatusPending,
		Payload:   req.Payload,
		CreatedBy: userID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Граница durability: если вставка не прошла, ждать нечего,
	// вызывающий обязан повторить постановку целиком
	if err := s.repo.Create(ctx, job); err != nil {
		s.log.Errorw("Failed to durably record job", "error", err, "type", req.Type, "tenantID", tenantID)
		return nil, fmt.Errorf("%w: %v", domain.ErrDurabilityFailure, err)
	}

	s.metrics.IncJobCreated(string(job.Type))
	s.log.Infow("Job enqueued", "jobID", job.ID, "type", job.Type, "tenantID", tenantID)

	// Best-effort уведомление воркера: сбой логируется и глотается,
	// воркер независимо подбирает pending-задачи сканированием очереди
	notification := domain.WorkerNotification{
		JobID:    job.ID,
		TenantID: tenantID,
		UserID:   userID,
		Type:     job.Type,
		Payload:  job.Payload,
	}
	if err := s.notifier.NotifyJobCreated(ctx, notification); err != nil {
		s.metrics.IncWorkerNotifyFailure()
		s.log.Warnw("Worker notification failed, job remains pending for pickup", "error", err, "jobID", job.ID)
	}

	// Событие жизненного цикла тоже best-effort
	if err := s.producer.PublishJobEvent(ctx, kafka.TopicJobCreated, job); err != nil {
		s.log.Warnw("Failed to publish job created event", "error", err, "jobID", job.ID)
	}

	return job, nil
}

// Get возвращает задачу арендатора.
func (s *jobService) Get(ctx context.Context, tenantID, jobID uuid.UUID) (*domain.Job, error) {
	return s.repo.GetForTenant(ctx, tenantID, jobID)
}

// List возвращает постраничный список задач арендатора.
func (s *jobService) List(ctx context.Context, filter domain.JobListFilter) ([]domain.Job, int, error) {
	return s.repo.ListForTenant(ctx, filter)
}

// Wait ожидает терминального статуса задачи чистым опросом.
func (s *jobService) Wait(ctx context.Context, jobID uuid.UUID) (PollOutcome, error) {
	started := time.Now()
	outcome, err := s.poller.Poll(ctx, jobID)
	if err == nil {
		s.metrics.ObserveJobWait(time.Since(started).Seconds(), string(outcome.Kind))
	}
	return outcome, err
}

// WaitWithNotify подписывается на realtime-канал задачи и параллельно
// запускает поллер как страховку. Ровно одна подписка и ровно одна
// отписка на одно ожидание.
func (s *jobService) WaitWithNotify(ctx context.Context, jobID uuid.UUID) (PollOutcome, error) {
	if s.realtime == nil {
		return s.Wait(ctx, jobID)
	}

	started := time.Now()
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan domain.JobSnapshot, 1)
	unsubscribe, err := s.realtime.Subscribe(waitCtx, jobID, func(snapshot domain.JobSnapshot) {
		if !snapshot.Status.IsTerminal() {
			return
		}
		select {
		case updates <- snapshot:
		default:
		}
	})
	if err != nil {
		s.log.Warnw("Realtime subscribe failed, falling back to polling", "error", err, "jobID", jobID)
		return s.Wait(ctx, jobID)
	}
	defer unsubscribe()

	type pollResult struct {
		outcome PollOutcome
		err     error
	}
	pollCh := make(chan pollResult, 1)
	go func() {
		outcome, err := s.poller.Poll(waitCtx, jobID)
		pollCh <- pollResult{outcome: outcome, err: err}
	}()

	select {
	case snapshot := <-updates:
		// Быстрый путь сработал, страховочный поллер останавливается отменой
		outcome := outcomeFromSnapshot(snapshot)
		s.metrics.ObserveJobWait(time.Since(started).Seconds(), string(outcome.Kind))
		return outcome, nil
	case result := <-pollCh:
		if result.err == nil {
			s.metrics.ObserveJobWait(time.Since(started).Seconds(), string(result.outcome.Kind))
		}
		return result.outcome, result.err
	}
}

// Claim атомарно захватывает задачу для воркера.
func (s *jobService) Claim(ctx context.Context, jobID uuid.UUID, workerID string) (*domain.Job, error) {
	job, err := s.repo.Claim(ctx, jobID, workerID)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyClaimed) {
			s.log.Debugw("Job already claimed by another worker", "jobID", jobID, "workerID", workerID)
		}
		return nil, err
	}

	s.metrics.IncJobStatus(string(job.Status), string(job.Type))
	s.publishUpdate(ctx, job)
	return job, nil
}

// ApplyWorkerResult применяет терминальный результат от воркера.
func (s *jobService) ApplyWorkerResult(ctx context.Context, jobID uuid.UUID, status domain.JobStatus, result []byte, errorMessage string) (*domain.Job, error) {
	if !status.IsTerminal() {
		return nil, domain.ErrInvalidTransition
	}

	job, err := s.repo.Transition(ctx, jobID, status, result, errorMessage)
	if err != nil {
		return nil, err
	}

	s.metrics.IncJobStatus(string(job.Status), string(job.Type))
	s.publishUpdate(ctx, job)

	if err := s.producer.PublishJobEvent(ctx, kafka.TopicJobCompleted, job); err != nil {
		s.log.Warnw("Failed to publish job completed event", "error", err, "jobID", job.ID)
	}

	return job, nil
}

// publishUpdate отправляет снимок задачи подписчикам realtime-канала.
func (s *jobService) publishUpdate(ctx context.Context, job *domain.Job) {
	if s.realtime == nil {
		return
	}
	if err := s.realtime.PublishJobUpdate(ctx, job.Snapshot()); err != nil {
		s.log.Warnw("Failed to publish realtime job update", "error", err, "jobID", job.ID)
	}
}

// outcomeFromSnapshot строит исход ожидания из терминального снимка.
func outcomeFromSnapshot(snapshot domain.JobSnapshot) PollOutcome {
	if snapshot.Status == domain.JobStatusFailed {
		return PollOutcome{
			Kind:         PollFailed,
			ErrorMessage: snapshot.ErrorMessage,
		}
	}
	return PollOutcome{
		Kind:   PollCompleted,
		Result: decodeResult(snapshot.Result),
	}
}
