package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/officio/Async-billing-service/internal/domain"
)

// JobRepository определяет методы для работы с хранилищем задач.
// Это граница durability: успешный Create гарантирует, что задача
// восстановима, даже если все последующие шаги упадут.
type JobRepository interface {
	// Create сохраняет новую задачу в статусе pending.
	Create(ctx context.Context, job *domain.Job) error

	// Get возвращает задачу по ее ID.
	Get(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)

	// GetForTenant возвращает задачу по ID с проверкой арендатора.
	GetForTenant(ctx context.Context, tenantID, jobID uuid.UUID) (*domain.Job, error)

	// Claim атомарно переводит pending -> processing, только если статус
	// все еще pending. Из двух конкурирующих воркеров побеждает один;
	// второй получает domain.ErrAlreadyClaimed.
	Claim(ctx context.Context, jobID uuid.UUID, workerID string) (*domain.Job, error)

	// Transition переводит задачу в новый статус. Переход на уже
	// терминальной задаче это no-op: возвращается неизмененный снимок,
	// потому что повторная доставка колбэков воркера ожидаема.
	Transition(ctx context.Context, jobID uuid.UUID, status domain.JobStatus, result []byte, errorMessage string) (*domain.Job, error)

	// ListForTenant возвращает постраничный список задач арендатора.
	ListForTenant(ctx context.Context, filter domain.JobListFilter) ([]domain.Job, int, error)
}
