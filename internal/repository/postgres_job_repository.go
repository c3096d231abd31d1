package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/officio/Async-billing-service/internal/domain"
	"github.com/officio/Async-billing-service/pkg/logger"
)

const jobColumns = `id, tenant_id, type, status, payload, result, error_message, claimed_by, created_by, created_at, updated_at`

// PostgresJobRepository реализует JobRepository для PostgreSQL поверх pgxpool.
type PostgresJobRepository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewPostgresJobRepository создает новый репозиторий задач для PostgreSQL.
func NewPostgresJobRepository(ctx context.Context, databaseURL string, log *logger.Logger) (*PostgresJobRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return &PostgresJobRepository{pool: pool, log: log}, nil
}

// NewPostgresJobRepositoryWithPool создает репозиторий поверх готового пула.
func NewPostgresJobRepositoryWithPool(pool *pgxpool.Pool, log *logger.Logger) *PostgresJobRepository {
	return &PostgresJobRepository{pool: pool, log: log}
}

// Close закрывает пул соединений.
func (r *PostgresJobRepository) Close() {
	r.pool.Close()
}

// Create сохраняет новую задачу в статусе pending.
func (r *PostgresJobRepository) Create(ctx context.Context, job *domain.Job) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO jobs (
			id,
			tenant_id,
			type,
			status,
			payload,
			result,
			error_message,
			claimed_by,
			created_by,
			created_at,
			updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		job.ID,
		job.TenantID,
		string(job.Type),
		string(job.Status),
		job.Payload,
		job.Result,
		job.ErrorMessage,
		job.ClaimedBy,
		job.CreatedBy,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		r.log.Errorw("Failed to insert job", "error", err, "jobID", job.ID)
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get возвращает задачу по ее ID.
func (r *PostgresJobRepository) Get(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
	return scanJob(row)
}

// GetForTenant возвращает задачу по ID с проверкой арендатора.
// Задача видна только внутри своего арендатора.
func (r *PostgresJobRepository) GetForTenant(ctx context.Context, tenantID, jobID uuid.UUID) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 AND tenant_id = $2`, jobID, tenantID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Отличаем "нет такой задачи" от "чужой арендатор"
			if _, getErr := r.Get(ctx, jobID); getErr == nil {
				return nil, domain.ErrTenantMismatch
			}
		}
		return nil, err
	}
	return job, nil
}

// Claim атомарно захватывает pending-задачу для воркера.
// Условный UPDATE гарантирует, что из конкурирующих воркеров побеждает один.
func (r *PostgresJobRepository) Claim(ctx context.Context, jobID uuid.UUID, workerID string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE jobs
		SET status = $2,
			claimed_by = $3,
			updated_at = $4
		WHERE id = $1 AND status = $5
		RETURNING `+jobColumns,
		jobID,
		string(domain.JobStatusProcessing),
		workerID,
		time.Now().UTC(),
		string(domain.JobStatusPending),
	)

	job, err := scanJob(row)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// UPDATE не затронул строк: либо задачи нет, либо она уже не pending
	if _, getErr := r.Get(ctx, jobID); getErr != nil {
		return nil, getErr
	}
	return nil, domain.ErrAlreadyClaimed
}

// Transition переводит задачу в новый статус через охраняемый условный UPDATE.
// Терминальная задача не меняется: возвращается ее текущий снимок (no-op),
// потому что провайдер и воркер могут доставлять колбэки повторно.
func (r *PostgresJobRepository) Transition(ctx context.Context, jobID uuid.UUID, status domain.JobStatus, result []byte, errorMessage string) (*domain.Job, error) {
	if status == domain.JobStatusPending {
		return nil, domain.ErrInvalidTransition
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE jobs
		SET status = $2,
			result = $3,
			error_message = $4,
			updated_at = $5
		WHERE id = $1
		  AND status NOT IN ($6, $7)
		RETURNING `+jobColumns,
		jobID,
		string(status),
		result,
		errorMessage,
		time.Now().UTC(),
		string(domain.JobStatusCompleted),
		string(domain.JobStatusFailed),
	)

	job, err := scanJob(row)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// Строка не обновлена: задача отсутствует или уже терминальна
	current, getErr := r.Get(ctx, jobID)
	if getErr != nil {
		return nil, getErr
	}
	if current.Status.IsTerminal() {
		r.log.Debugw("Transition on terminal job ignored", "jobID", jobID, "status", current.Status)
		return current, nil
	}
	return nil, domain.ErrInvalidTransition
}

// ListForTenant возвращает постраничный список задач арендатора.
func (r *PostgresJobRepository) ListForTenant(ctx context.Context, filter domain.JobListFilter) ([]domain.Job, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	baseQuery := `FROM jobs WHERE tenant_id = $1`
	args := []any{filter.TenantID}
	if filter.Type != "" {
		baseQuery += ` AND type = $2`
		args = append(args, string(filter.Type))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) `+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	listQuery := fmt.Sprintf(
		`SELECT %s %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		jobColumns,
		baseQuery,
		len(args)+1,
		len(args)+2,
	)
	listArgs := append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	rows, err := r.pool.Query(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]domain.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("iterate job rows: %w", rows.Err())
	}

	return jobs, total, nil
}

// scanJob читает одну строку задачи из результата запроса.
func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job     domain.Job
		jobType string
		status  string
		payload []byte
		result  []byte
	)

	err := row.Scan(
		&job.ID,
		&job.TenantID,
		&jobType,
		&status,
		&payload,
		&result,
		&job.ErrorMessage,
		&job.ClaimedBy,
		&job.CreatedBy,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}

	job.Type = domain.JobType(jobType)
	job.Status = domain.JobStatus(status)
	job.Payload = json.RawMessage(payload)
	job.Result = json.RawMessage(result)
	return &job, nil
}
