package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/officio/Async-billing-service/internal/domain"
	stripeclient "github.com/officio/Async-billing-service/internal/integration/stripe"
	"github.com/officio/Async-billing-service/internal/kafka"
	"github.com/officio/Async-billing-service/internal/metrics"
	"github.com/officio/Async-billing-service/internal/repository"
	"github.com/officio/Async-billing-service/pkg/logger"
)

// BillingService интерфейс сервиса биллинга арендаторов.
// Все переходы состояния идут через единственную операцию
// ApplyObservedTruth: и вебхук, и ручная сверка сходятся в ней.
type BillingService interface {
	// BeginCheckout создает начальное состояние биллинга (incomplete)
	// в момент старта checkout-сессии арендатора.
	BeginCheckout(ctx context.Context, tenantID uuid.UUID) (*domain.SubscriptionState, error)

	// GetState возвращает текущее состояние биллинга арендатора.
	GetState(ctx context.Context, tenantID uuid.UUID) (*domain.SubscriptionState, error)

	// ApplyObservedTruth применяет наблюдаемую истину от провайдера.
	// Последняя наблюдаемая истина всегда побеждает; повторное применение
	// уже текущего состояния это no-op.
	ApplyObservedTruth(ctx context.Context, tenantID uuid.UUID, observed domain.ObservedSubscription) (*domain.SubscriptionState, error)

	// Verify ручная сверка: запрашивает провайдера напрямую и применяет
	// найденную подписку через ApplyObservedTruth. Отсутствие подписки
	// не деградирует уже активного арендатора.
	Verify(ctx context.Context, tenantID uuid.UUID) (domain.BillingVerifyResponse, error)
}

type billingService struct {
	repo     repository.SubscriptionRepository
	provider stripeclient.Client
	producer kafka.Producer
	metrics  metrics.BillingMetrics
	log      *logger.Logger
	now      func() time.Time
}

// NewBillingService создает новый сервис биллинга.
func NewBillingService(
	repo repository.SubscriptionRepository,
	provider stripeclient.Client,
	producer kafka.Producer,
	m metrics.BillingMetrics,
	log *logger.Logger,
) BillingService {
	return &billingService{
		repo:     repo,
		provider: provider,
		producer: producer,
		metrics:  m,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// BeginCheckout создает начальное состояние биллинга арендатора.
func (s *billingService) BeginCheckout(ctx context.Context, tenantID uuid.UUID) (*domain.SubscriptionState, error) {
	existing, err := s.repo.GetByTenantID(ctx, tenantID)
	if err == nil {
		// Состояние уже есть: повторный старт checkout его не сбрасывает
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	state := &domain.SubscriptionState{
		TenantID: tenantID,
		Status:   domain.SubscriptionStatusIncomplete,
	}
	if err := s.repo.Create(ctx, state); err != nil {
		return nil, fmt.Errorf("create subscription state: %w", err)
	}

	s.log.Infow("Billing checkout started", "tenantID", tenantID)
	return state, nil
}

// GetState возвращает текущее состояние биллинга арендатора.
func (s *billingService) GetState(ctx context.Context, tenantID uuid.UUID) (*domain.SubscriptionState, error) {
	return s.repo.GetByTenantID(ctx, tenantID)
}

// ApplyObservedTruth применяет наблюдаемую истину от провайдера.
// Каждый переход это "установить значение", поэтому повторная доставка
// того же события безопасна.
func (s *billingService) ApplyObservedTruth(ctx context.Context, tenantID uuid.UUID, observed domain.ObservedSubscription) (*domain.SubscriptionState, error) {
	state, err := s.repo.GetByTenantID(ctx, tenantID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		// Вебхук мог прийти раньше, чем клиент создал состояние checkout
		state = &domain.SubscriptionState{
			TenantID: tenantID,
			Status:   domain.SubscriptionStatusIncomplete,
		}
		if err := s.repo.Create(ctx, state); err != nil {
			return nil, fmt.Errorf("create subscription state: %w", err)
		}
	}

	// Из canceled нет пути назад со старой подпиской: реактивация
	// возможна только с новым subscription id у провайдера
	if state.Status == domain.SubscriptionStatusCanceled &&
		observed.Status != domain.SubscriptionStatusCanceled &&
		(observed.SubscriptionID == "" || observed.SubscriptionID == state.ExternalSubscriptionID) {
		s.log.Warnw("Ignoring stale event for canceled tenant",
			"tenantID", tenantID, "observedStatus", observed.Status, "subscriptionID", observed.SubscriptionID)
		return state, nil
	}

	// Повторное применение уже текущего состояния это no-op:
	// никакой записи, никаких событий, никакого дрожания
	if s.isCurrent(state, observed) {
		s.log.Debugw("Observed truth already current, no-op", "tenantID", tenantID, "status", state.Status)
		return state, nil
	}

	state.Status = observed.Status
	if observed.SubscriptionID != "" {
		state.ExternalSubscriptionID = observed.SubscriptionID
	}
	if observed.CurrentPeriodEnd != nil {
		state.CurrentPeriodEnd = observed.CurrentPeriodEnd
	}
	// Grace-период устанавливается значением из наблюдения. Единственное
	// исключение: verbatim-синхронизация past_due без данных о grace
	// не должна стирать уже назначенное окно.
	if observed.Status == domain.SubscriptionStatusPastDue && observed.GracePeriodUntil == nil {
		// ничего не меняем
	} else {
		state.GracePeriodUntil = observed.GracePeriodUntil
	}

	if err := s.repo.Update(ctx, state); err != nil {
		return nil, fmt.Errorf("update subscription state: %w", err)
	}

	s.log.Infow("Subscription state transitioned",
		"tenantID", tenantID, "status", state.Status, "subscriptionID", state.ExternalSubscriptionID)

	// Событие жизненного цикла best-effort
	if err := s.producer.PublishSubscriptionEvent(ctx, kafka.TopicSubscriptionUpdated, state); err != nil {
		s.log.Warnw("Failed to publish subscription updated event", "error", err, "tenantID", tenantID)
	}

	return state, nil
}

// isCurrent проверяет, совпадает ли наблюдение с текущим состоянием.
func (s *billingService) isCurrent(state *domain.SubscriptionState, observed domain.ObservedSubscription) bool {
	if state.Status != observed.Status {
		return false
	}
	if observed.SubscriptionID != "" && observed.SubscriptionID != state.ExternalSubscriptionID {
		return false
	}
	if !equalTimePtr(state.CurrentPeriodEnd, observed.CurrentPeriodEnd) && observed.CurrentPeriodEnd != nil {
		return false
	}
	if observed.GracePeriodUntil != nil && !equalTimePtr(state.GracePeriodUntil, observed.GracePeriodUntil) {
		return false
	}
	return true
}

// Verify ручная сверка с провайдером.
// Используется, когда клиент подозревает пропущенный вебхук, например
// вернувшись со страницы checkout раньше его доставки.
func (s *billingService) Verify(ctx context.Context, tenantID uuid.UUID) (domain.BillingVerifyResponse, error) {
	observed, err := s.provider.FindSubscriptionForTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, stripeclient.ErrNoSubscription) {
			// Отсутствие подписки не является доказательством отмены:
			// существующее состояние не трогаем
			s.metrics.IncVerify("not_found")
			return s.respondFromStoredState(ctx, tenantID)
		}
		s.metrics.IncVerify("provider_error")
		s.log.Errorw("Billing provider unreachable during verify", "error", err, "tenantID", tenantID)
		return domain.BillingVerifyResponse{}, fmt.Errorf("%w: %v", domain.ErrProviderUnreachable, err)
	}

	// Применяем только пригодную подписку; прочие статусы не деградируют
	// состояние на основании ручной сверки
	if observed.Status == domain.SubscriptionStatusActive || observed.Status == domain.SubscriptionStatusTrialing {
		state, err := s.ApplyObservedTruth(ctx, tenantID, *observed)
		if err != nil {
			return domain.BillingVerifyResponse{}, err
		}
		s.metrics.IncVerify("applied")
		return domain.BillingVerifyResponse{
			IsActive:           state.IsActive(s.now()),
			SubscriptionStatus: state.Status,
		}, nil
	}

	s.metrics.IncVerify("no_usable_subscription")
	return s.respondFromStoredState(ctx, tenantID)
}

// respondFromStoredState строит ответ сверки из сохраненного состояния,
// ничего не мутируя.
func (s *billingService) respondFromStoredState(ctx context.Context, tenantID uuid.UUID) (domain.BillingVerifyResponse, error) {
	state, err := s.repo.GetByTenantID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.BillingVerifyResponse{
				IsActive:           false,
				SubscriptionStatus: domain.SubscriptionStatusIncomplete,
			}, nil
		}
		return domain.BillingVerifyResponse{}, err
	}
	return domain.BillingVerifyResponse{
		IsActive:           state.IsActive(s.now()),
		SubscriptionStatus: state.Status,
	}, nil
}

// equalTimePtr сравнивает два указателя на время.
func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
