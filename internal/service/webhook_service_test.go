package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/officio/Async-billing-service/internal/domain"
	"github.com/officio/Async-billing-service/internal/kafka"
	"github.com/officio/Async-billing-service/internal/repository"
	"github.com/officio/Async-billing-service/pkg/logger"
)

func newTestWebhookService(t *testing.T) (WebhookService, BillingService, repository.SubscriptionRepository) {
	t.Helper()
	log := logger.New(logger.ERROR)
	repo := repository.NewInMemorySubscriptionRepository(log)
	billing := NewBillingService(repo, &stubProvider{}, kafka.NopProducer{}, nopBillingMetrics{}, log)
	svc := NewWebhookService(billing, repo, nopBillingMetrics{}, log)
	return svc, billing, repo
}

func TestProcessEventCheckoutCompletedActivates(t *testing.T) {
	ctx := context.Background()
	svc, billing, _ := newTestWebhookService(t)
	tenantID := uuid.New()

	err := svc.ProcessEvent(ctx, &domain.BillingEvent{
		ExternalID:     "evt_1",
		Type:           domain.BillingEventCheckoutCompleted,
		TenantID:       tenantID.String(),
		SubscriptionID: "sub_1",
		Created:        time.Now().UTC(),
	})
	require.NoError(t, err)

	state, err := billing.GetState(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, state.Status)
	assert.Equal(t, "sub_1", state.ExternalSubscriptionID)
}

func TestProcessEventPaymentFailedStartsGrace(t *testing.T) {
	ctx := context.Background()
	svc, billing, _ := newTestWebhookService(t)
	tenantID := uuid.New()
	eventTime := time.Now().UTC()

	require.NoError(t, svc.ProcessEvent(ctx, &domain.BillingEvent{
		ExternalID:     "evt_1",
		Type:           domain.BillingEventCheckoutCompleted,
		TenantID:       tenantID.String(),
		SubscriptionID: "sub_1",
		Created:        eventTime,
	}))

	require.NoError(t, svc.ProcessEvent(ctx, &domain.BillingEvent{
		ExternalID:     "evt_2",
		Type:           domain.BillingEventInvoicePaymentFailed,
		TenantID:       tenantID.String(),
		SubscriptionID: "sub_1",
		Created:        eventTime,
	}))

	state, err := billing.GetState(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusPastDue, state.Status)
	require.NotNil(t, state.GracePeriodUntil)

	// Grace-период отсчитывается от времени события
	expected := eventTime.Add(domain.DefaultGracePeriod)
	assert.True(t, state.GracePeriodUntil.Equal(expected))
	assert.True(t, state.IsActive(eventTime.Add(time.Hour)))
	assert.False(t, state.IsActive(expected.Add(time.Hour)))
}

func TestProcessEventResolvesTenantBySubscription(t *testing.T) {
	ctx := context.Background()
	svc, billing, _ := newTestWebhookService(t)
	tenantID := uuid.New()

	// Checkout привязывает подписку к арендатору
	require.NoError(t, svc.ProcessEvent(ctx, &domain.BillingEvent{
		ExternalID:     "evt_1",
		Type:           domain.BillingEventCheckoutCompleted,
		TenantID:       tenantID.String(),
		SubscriptionID: "sub_1",
		Created:        time.Now().UTC(),
	}))

	// Последующие события инвойсов несут только ID подписки
	require.NoError(t, svc.ProcessEvent(ctx, &domain.BillingEvent{
		ExternalID:     "evt_2",
		Type:           domain.BillingEventInvoicePaymentFailed,
		SubscriptionID: "sub_1",
		Created:        time.Now().UTC(),
	}))

	state, err := billing.GetState(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusPastDue, state.Status)
}

func TestProcessEventUnknownSubscriptionIsAcked(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestWebhookService(t)

	// Событие о неизвестной подписке подтверждаем, чтобы провайдер
	// не ретраил его бесконечно
	err := svc.ProcessEvent(ctx, &domain.BillingEvent{
		ExternalID:     "evt_1",
		Type:           domain.BillingEventInvoicePaid,
		SubscriptionID: "sub_unknown",
		Created:        time.Now().UTC(),
	})
	assert.NoError(t, err)
}

func TestProcessEventSubscriptionDeletedCancels(t *testing.T) {
	ctx := context.Background()
	svc, billing, _ := newTestWebhookService(t)
	tenantID := uuid.New()

	require.NoError(t, svc.ProcessEvent(ctx, &domain.BillingEvent{
		ExternalID:     "evt_1",
		Type:           domain.BillingEventCheckoutCompleted,
		TenantID:       tenantID.String(),
		SubscriptionID: "sub_1",
		Created:        time.Now().UTC(),
	}))

	require.NoError(t, svc.ProcessEvent(ctx, &domain.BillingEvent{
		ExternalID:     "evt_2",
		Type:           domain.BillingEventSubscriptionDeleted,
		TenantID:       tenantID.String(),
		SubscriptionID: "sub_1",
		Created:        time.Now().UTC(),
	}))

	state, err := billing.GetState(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCanceled, state.Status)
	assert.False(t, state.IsActive(time.Now()))
}

func TestProcessEventRedeliveryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, billing, _ := newTestWebhookService(t)
	tenantID := uuid.New()

	event := &domain.BillingEvent{
		ExternalID:     "evt_1",
		Type:           domain.BillingEventCheckoutCompleted,
		TenantID:       tenantID.String(),
		SubscriptionID: "sub_1",
		Created:        time.Now().UTC(),
	}

	require.NoError(t, svc.ProcessEvent(ctx, event))
	require.NoError(t, svc.ProcessEvent(ctx, event))

	state, err := billing.GetState(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, state.Status)
}

func TestProcessEventIgnoresUnhandledType(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestWebhookService(t)
	tenantID := uuid.New()

	err := svc.ProcessEvent(ctx, &domain.BillingEvent{
		ExternalID: "evt_1",
		Type:       domain.BillingEventType("customer.created"),
		TenantID:   tenantID.String(),
		Created:    time.Now().UTC(),
	})
	assert.NoError(t, err)
}
