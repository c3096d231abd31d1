package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/officio/Async-billing-service/internal/domain"
	"github.com/officio/Async-billing-service/pkg/logger"
)

// CachedSubscriptionRepository реализует SubscriptionRepository с кешированием.
// Ошибки кеша никогда не прерывают основную операцию.
type CachedSubscriptionRepository struct {
	repo  SubscriptionRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedSubscriptionRepository создает новый репозиторий с кешированием.
func NewCachedSubscriptionRepository(
	repo SubscriptionRepository,
	cache *RedisCacheRepository,
	log *logger.Logger,
) SubscriptionRepository {
	return &CachedSubscriptionRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// Create сохраняет состояние в БД и кеширует его.
func (r *CachedSubscriptionRepository) Create(ctx context.Context, state *domain.SubscriptionState) error {
	// Сначала сохраняем в основное хранилище
	if err := r.repo.Create(ctx, state); err != nil {
		return err
	}

	if err := r.cache.CacheSubscriptionState(ctx, state); err != nil {
		r.log.Warnw("Failed to cache subscription state after creation", "error", err, "tenantID", state.TenantID)
		// Продолжаем выполнение, несмотря на ошибку кеширования
	}

	return nil
}

// GetByTenantID получает состояние (сначала из кеша, потом из БД).
func (r *CachedSubscriptionRepository) GetByTenantID(ctx context.Context, tenantID uuid.UUID) (*domain.SubscriptionState, error) {
	cached, err := r.cache.GetCachedSubscriptionState(ctx, tenantID)
	if err != nil {
		r.log.Warnw("Error getting subscription state from cache", "error", err, "tenantID", tenantID)
		// Продолжаем выполнение при ошибке кеша
	}
	if cached != nil {
		r.log.Debugw("Subscription state found in cache", "tenantID", tenantID)
		return cached, nil
	}

	state, err := r.repo.GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.CacheSubscriptionState(ctx, state); err != nil {
		r.log.Warnw("Failed to cache subscription state after fetching", "error", err, "tenantID", tenantID)
	}

	return state, nil
}

// GetByExternalSubscriptionID ходит напрямую в БД: кеш ключуется по арендатору.
func (r *CachedSubscriptionRepository) GetByExternalSubscriptionID(ctx context.Context, subscriptionID string) (*domain.SubscriptionState, error) {
	return r.repo.GetByExternalSubscriptionID(ctx, subscriptionID)
}

// Update обновляет состояние в БД и перекеширует его.
func (r *CachedSubscriptionRepository) Update(ctx context.Context, state *domain.SubscriptionState) error {
	if err := r.repo.Update(ctx, state); err != nil {
		return err
	}

	// Перекешируем свежее состояние; при ошибке просто инвалидируем
	if err := r.cache.CacheSubscriptionState(ctx, state); err != nil {
		r.log.Warnw("Failed to cache subscription state after update", "error", err, "tenantID", state.TenantID)
		if err := r.cache.InvalidateSubscriptionState(ctx, state.TenantID); err != nil {
			r.log.Warnw("Failed to invalidate subscription state cache", "error", err, "tenantID", state.TenantID)
		}
	}

	return nil
}
