package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/officio/Async-billing-service/internal/domain"
	"github.com/officio/Async-billing-service/internal/metrics"
	"github.com/officio/Async-billing-service/internal/repository"
	"github.com/officio/Async-billing-service/pkg/logger"
)

// WebhookService применяет проверенные события провайдера к состоянию
// биллинга. Провайдер доставляет события повторно, поэтому обработчик
// обязан быть реентерабельным: вся идемпотентность обеспечивается
// ApplyObservedTruth.
type WebhookService interface {
	// ProcessEvent применяет одно проверенное событие биллинга.
	ProcessEvent(ctx context.Context, event *domain.BillingEvent) error
}

type webhookService struct {
	billing BillingService
	repo    repository.SubscriptionRepository
	metrics metrics.BillingMetrics
	log     *logger.Logger
}

// NewWebhookService создает новый сервис обработки вебхуков.
func NewWebhookService(
	billing BillingService,
	repo repository.SubscriptionRepository,
	m metrics.BillingMetrics,
	log *logger.Logger,
) WebhookService {
	return &webhookService{
		billing: billing,
		repo:    repo,
		metrics: m,
		log:     log,
	}
}

// ProcessEvent применяет одно проверенное событие биллинга.
func (s *webhookService) ProcessEvent(ctx context.Context, event *domain.BillingEvent) error {
	tenantID, err := s.resolveTenant(ctx, event)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Событие о подписке, которую мы не знаем: подтверждаем и забываем,
			// иначе провайдер будет доставлять его бесконечно
			s.log.Warnw("Webhook event references unknown subscription",
				"eventID", event.ExternalID, "type", event.Type, "subscriptionID", event.SubscriptionID)
			s.metrics.IncWebhookEvent(string(event.Type), "unknown_subscription")
			return nil
		}
		return err
	}

	observed, handled := s.observedFromEvent(event)
	if !handled {
		s.log.Debugw("Ignoring unhandled webhook event type", "type", event.Type, "eventID", event.ExternalID)
		s.metrics.IncWebhookEvent(string(event.Type), "ignored")
		return nil
	}

	if _, err := s.billing.ApplyObservedTruth(ctx, tenantID, observed); err != nil {
		s.metrics.IncWebhookEvent(string(event.Type), "error")
		return fmt.Errorf("apply webhook event %s: %w", event.ExternalID, err)
	}

	s.metrics.IncWebhookEvent(string(event.Type), "applied")
	s.log.Infow("Webhook event applied", "eventID", event.ExternalID, "type", event.Type, "tenantID", tenantID)
	return nil
}

// resolveTenant находит арендатора события: либо он указан явно,
// либо ищется по внешнему ID подписки.
func (s *webhookService) resolveTenant(ctx context.Context, event *domain.BillingEvent) (uuid.UUID, error) {
	if event.TenantID != "" {
		tenantID, err := uuid.Parse(event.TenantID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: bad tenant id in event %s", repository.ErrInvalidData, event.ExternalID)
		}
		return tenantID, nil
	}

	if event.SubscriptionID == "" {
		return uuid.Nil, repository.ErrNotFound
	}

	state, err := s.repo.GetByExternalSubscriptionID(ctx, event.SubscriptionID)
	if err != nil {
		return uuid.Nil, err
	}
	return state.TenantID, nil
}

// observedFromEvent переводит тип события в наблюдаемую истину.
func (s *webhookService) observedFromEvent(event *domain.BillingEvent) (domain.ObservedSubscription, bool) {
	switch event.Type {
	case domain.BillingEventCheckoutCompleted:
		// Checkout завершен: incomplete -> active (или trialing по данным
		// последующего subscription.updated)
		return domain.ObservedSubscription{
			Status:           domain.SubscriptionStatusActive,
			SubscriptionID:   event.SubscriptionID,
			CurrentPeriodEnd: event.CurrentPeriodEnd,
		}, true

	case domain.BillingEventInvoicePaid:
		// Оплата прошла: арендатор активен, grace-период снимается
		return domain.ObservedSubscription{
			Status:           domain.SubscriptionStatusActive,
			SubscriptionID:   event.SubscriptionID,
			CurrentPeriodEnd: event.CurrentPeriodEnd,
			GracePeriodUntil: nil,
		}, true

	case domain.BillingEventInvoicePaymentFailed:
		// Оплата не прошла: past_due с grace-периодом на повторное списание
		graceUntil := event.Created.Add(domain.DefaultGracePeriod)
		return domain.ObservedSubscription{
			Status:           domain.SubscriptionStatusPastDue,
			SubscriptionID:   event.SubscriptionID,
			GracePeriodUntil: &graceUntil,
		}, true

	case domain.BillingEventSubscriptionUpdated:
		// Синхронизируем статус дословно по данным провайдера
		return domain.ObservedSubscription{
			Status:           event.Status,
			SubscriptionID:   event.SubscriptionID,
			CurrentPeriodEnd: event.CurrentPeriodEnd,
		}, true

	case domain.BillingEventSubscriptionDeleted:
		return domain.ObservedSubscription{
			Status:         domain.SubscriptionStatusCanceled,
			SubscriptionID: event.SubscriptionID,
		}, true

	default:
		return domain.ObservedSubscription{}, false
	}
}
