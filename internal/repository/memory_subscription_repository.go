package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/officio/Async-billing-service/internal/domain"
	"github.com/officio/Async-billing-service/pkg/logger"
)

// InMemorySubscriptionRepository реализация SubscriptionRepository в памяти.
type InMemorySubscriptionRepository struct {
	states map[uuid.UUID]domain.SubscriptionState
	mutex  sync.RWMutex
	log    *logger.Logger
}

// NewInMemorySubscriptionRepository создает новый репозиторий состояний в памяти.
func NewInMemorySubscriptionRepository(log *logger.Logger) *InMemorySubscriptionRepository {
	return &InMemorySubscriptionRepository{
		states: make(map[uuid.UUID]domain.SubscriptionState),
		log:    log,
	}
}

// Create сохраняет новое состояние биллинга арендатора.
func (r *InMemorySubscriptionRepository) Create(ctx context.Context, state *domain.SubscriptionState) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.states[state.TenantID]; exists {
		return ErrDuplicate
	}

	now := time.Now().UTC()
	state.CreatedAt = now
	state.UpdatedAt = now
	r.states[state.TenantID] = *state
	return nil
}

// GetByTenantID возвращает состояние биллинга арендатора.
func (r *InMemorySubscriptionRepository) GetByTenantID(ctx context.Context, tenantID uuid.UUID) (*domain.SubscriptionState, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	state, exists := r.states[tenantID]
	if !exists {
		return nil, ErrNotFound
	}
	return &state, nil
}

// GetByExternalSubscriptionID возвращает состояние по внешнему ID подписки.
func (r *InMemorySubscriptionRepository) GetByExternalSubscriptionID(ctx context.Context, subscriptionID string) (*domain.SubscriptionState, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, state := range r.states {
		if state.ExternalSubscriptionID == subscriptionID {
			s := state
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

// Update обновляет состояние биллинга целиком.
func (r *InMemorySubscriptionRepository) Update(ctx context.Context, state *domain.SubscriptionState) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.states[state.TenantID]; !exists {
		return ErrNotFound
	}

	state.UpdatedAt = time.Now().UTC()
	r.states[state.TenantID] = *state
	return nil
}
