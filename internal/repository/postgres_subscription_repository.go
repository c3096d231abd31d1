package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/officio/Async-billing-service/internal/domain"
	"github.com/officio/Async-billing-service/pkg/logger"
)

// postgresSubscriptionRepo реализует SubscriptionRepository для PostgreSQL.
type postgresSubscriptionRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresSubscriptionRepository создает новый экземпляр репозитория для PostgreSQL.
func NewPostgresSubscriptionRepository(db *sqlx.DB, log *logger.Logger) SubscriptionRepository {
	return &postgresSubscriptionRepo{
		db:  db,
		log: log,
	}
}

// Create сохраняет новое состояние биллинга арендатора.
func (r *postgresSubscriptionRepo) Create(ctx context.Context, state *domain.SubscriptionState) error {
	now := time.Now().UTC()
	state.CreatedAt = now
	state.UpdatedAt = now

	query := `
        INSERT INTO subscription_states (
            tenant_id, status, external_subscription_id,
            current_period_end, grace_period_until, created_at, updated_at
        ) VALUES (
            :tenant_id, :status, :external_subscription_id,
            :current_period_end, :grace_period_until, :created_at, :updated_at
        )`
	// NamedExecContext для маппинга полей структуры на параметры запроса
	_, err := r.db.NamedExecContext(ctx, query, state)
	if err != nil {
		r.log.Errorw("Failed to create subscription state in DB", "error", err, "tenantID", state.TenantID)
		return fmt.Errorf("repository: failed to create subscription state: %w", err)
	}

	r.log.Debugw("Successfully created subscription state in DB", "tenantID", state.TenantID)
	return nil
}

// GetByTenantID возвращает состояние биллинга арендатора.
func (r *postgresSubscriptionRepo) GetByTenantID(ctx context.Context, tenantID uuid.UUID) (*domain.SubscriptionState, error) {
	var state domain.SubscriptionState
	query := `
        SELECT tenant_id, status, external_subscription_id,
               current_period_end, grace_period_until, created_at, updated_at
        FROM subscription_states
        WHERE tenant_id = $1`

	err := r.db.GetContext(ctx, &state, query, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Warnw("Subscription state not found", "tenantID", tenantID)
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get subscription state from DB", "error", err, "tenantID", tenantID)
		return nil, fmt.Errorf("repository: failed to get subscription state: %w", err)
	}

	return &state, nil
}

// GetByExternalSubscriptionID возвращает состояние по внешнему ID подписки
// (понадобится для вебхуков).
func (r *postgresSubscriptionRepo) GetByExternalSubscriptionID(ctx context.Context, subscriptionID string) (*domain.SubscriptionState, error) {
	var state domain.SubscriptionState
	query := `
        SELECT tenant_id, status, external_subscription_id,
               current_period_end, grace_period_until, created_at, updated_at
        FROM subscription_states
        WHERE external_subscription_id = $1`

	err := r.db.GetContext(ctx, &state, query, subscriptionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get subscription state by external ID", "error", err, "subscriptionID", subscriptionID)
		return nil, fmt.Errorf("repository: failed to get subscription state by external id: %w", err)
	}

	return &state, nil
}

// Update обновляет состояние биллинга целиком.
func (r *postgresSubscriptionRepo) Update(ctx context.Context, state *domain.SubscriptionState) error {
	state.UpdatedAt = time.Now().UTC()

	query := `
        UPDATE subscription_states
        SET status = :status,
            external_subscription_id = :external_subscription_id,
            current_period_end = :current_period_end,
            grace_period_until = :grace_period_until,
            updated_at = :updated_at
        WHERE tenant_id = :tenant_id`

	res, err := r.db.NamedExecContext(ctx, query, state)
	if err != nil {
		r.log.Errorw("Failed to update subscription state in DB", "error", err, "tenantID", state.TenantID)
		return fmt.Errorf("repository: failed to update subscription state: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to get affected rows count: %w", err)
	}
	if rowsAffected == 0 {
		r.log.Warnw("No subscription state updated", "tenantID", state.TenantID)
		return ErrNotFound
	}

	r.log.Debugw("Subscription state updated", "tenantID", state.TenantID, "status", state.Status)
	return nil
}
