package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/officio/Async-billing-service/internal/domain"
)

// SubscriptionRepository определяет методы для работы с хранилищем
// состояний биллинга арендаторов.
type SubscriptionRepository interface {
	// Create сохраняет новое состояние биллинга арендатора (incomplete).
	Create(ctx context.Context, state *domain.SubscriptionState) error

	// GetByTenantID возвращает состояние биллинга арендатора.
	GetByTenantID(ctx context.Context, tenantID uuid.UUID) (*domain.SubscriptionState, error)

	// GetByExternalSubscriptionID возвращает состояние по внешнему ID подписки.
	// Нужен для вебхуков, в которых нет идентификатора арендатора.
	GetByExternalSubscriptionID(ctx context.Context, subscriptionID string) (*domain.SubscriptionState, error)

	// Update обновляет состояние биллинга целиком.
	// Вызывается только из ApplyObservedTruth, никаких точечных записей полей.
	Update(ctx context.Context, state *domain.SubscriptionState) error
}
