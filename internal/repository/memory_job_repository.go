package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/officio/Async-billing-service/internal/domain"
	"github.com/officio/Async-billing-service/pkg/logger"
)

// InMemoryJobRepository реализация JobRepository в памяти.
// Используется в тестах и в dev-окружении без PostgreSQL.
type InMemoryJobRepository struct {
	jobs  map[uuid.UUID]domain.Job
	mutex sync.RWMutex
	log   *logger.Logger
}

// NewInMemoryJobRepository создает новый репозиторий задач в памяти.
func NewInMemoryJobRepository(log *logger.Logger) *InMemoryJobRepository {
	return &InMemoryJobRepository{
		jobs: make(map[uuid.UUID]domain.Job),
		log:  log,
	}
}

// Create сохраняет новую задачу.
func (r *InMemoryJobRepository) Create(ctx context.Context, job *domain.Job) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return ErrDuplicate
	}

	r.jobs[job.ID] = *job
	return nil
}

// Get возвращает задачу по ID.
func (r *InMemoryJobRepository) Get(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	job, exists := r.jobs[jobID]
	if !exists {
		return nil, ErrNotFound
	}
	return &job, nil
}

// GetForTenant возвращает задачу по ID с проверкой арендатора.
func (r *InMemoryJobRepository) GetForTenant(ctx context.Context, tenantID, jobID uuid.UUID) (*domain.Job, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	job, exists := r.jobs[jobID]
	if !exists {
		return nil, ErrNotFound
	}
	if job.TenantID != tenantID {
		return nil, domain.ErrTenantMismatch
	}
	return &job, nil
}

// Claim атомарно захватывает pending-задачу.
func (r *InMemoryJobRepository) Claim(ctx context.Context, jobID uuid.UUID, workerID string) (*domain.Job, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	job, exists := r.jobs[jobID]
	if !exists {
		return nil, ErrNotFound
	}
	if job.Status != domain.JobStatusPending {
		return nil, domain.ErrAlreadyClaimed
	}

	job.Status = domain.JobStatusProcessing
	job.ClaimedBy = workerID
	job.UpdatedAt = time.Now().UTC()
	r.jobs[jobID] = job
	return &job, nil
}

// Transition переводит задачу в новый статус.
// Переход на терминальной задаче это no-op с неизмененным снимком.
func (r *InMemoryJobRepository) Transition(ctx context.Context, jobID uuid.UUID, status domain.JobStatus, result []byte, errorMessage string) (*domain.Job, error) {
	if status == domain.JobStatusPending {
		return nil, domain.ErrInvalidTransition
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	job, exists := r.jobs[jobID]
	if !exists {
		return nil, ErrNotFound
	}

	if job.Status.IsTerminal() {
		return &job, nil
	}
	if !job.Status.CanTransitionTo(status) {
		return nil, domain.ErrInvalidTransition
	}

	job.Status = status
	job.Result = result
	job.ErrorMessage = errorMessage
	job.UpdatedAt = time.Now().UTC()
	r.jobs[jobID] = job
	return &job, nil
}

// ListForTenant возвращает постраничный список задач арендатора.
func (r *InMemoryJobRepository) ListForTenant(ctx context.Context, filter domain.JobListFilter) ([]domain.Job, int, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	jobs := make([]domain.Job, 0)
	for _, job := range r.jobs {
		if job.TenantID != filter.TenantID {
			continue
		}
		if filter.Type != "" && job.Type != filter.Type {
			continue
		}
		jobs = append(jobs, job)
	}

	// Новые задачи в начале списка
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	total := len(jobs)
	offset := (filter.Page - 1) * filter.PageSize
	if offset >= total {
		return []domain.Job{}, total, nil
	}
	end := offset + filter.PageSize
	if end > total {
		end = total
	}
	return jobs[offset:end], total, nil
}
