package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/officio/Async-billing-service/internal/domain"
	"github.com/officio/Async-billing-service/pkg/logger"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

const (
	// Ключ метаданных для связи Stripe Subscription с арендатором
	metadataTenantIDKey = "tenant_id"
)

// ErrNoSubscription у арендатора нет подписки у провайдера.
// Отсутствие подписки не является доказательством отмены.
var ErrNoSubscription = errors.New("no subscription found for tenant")

// Client определяет методы для взаимодействия со Stripe API.
type Client interface {
	// FindSubscriptionForTenant ищет текущую подписку арендатора у провайдера.
	// Возвращает наблюдаемую истину для ApplyObservedTruth либо ErrNoSubscription.
	FindSubscriptionForTenant(ctx context.Context, tenantID uuid.UUID) (*domain.ObservedSubscription, error)
}

// stripeClient реализует интерфейс Client.
type stripeClient struct {
	client *client.API
	log    *logger.Logger
}

// NewStripeClient создает новый экземпляр клиента Stripe.
func NewStripeClient(apiKey string, log *logger.Logger) Client {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &stripeClient{
		client: sc,
		log:    log,
	}
}

// FindSubscriptionForTenant ищет подписку арендатора по метаданным.
// Из нескольких найденных возвращается первая пригодная (active/trialing),
// иначе первая найденная.
func (sc *stripeClient) FindSubscriptionForTenant(ctx context.Context, tenantID uuid.UUID) (*domain.ObservedSubscription, error) {
	params := &stripe.SubscriptionSearchParams{
		SearchParams: stripe.SearchParams{
			Query:   fmt.Sprintf("metadata['%s']:'%s'", metadataTenantIDKey, tenantID),
			Context: ctx,
		},
	}

	iter := sc.client.Subscriptions.Search(params)

	var fallback *stripe.Subscription
	for iter.Next() {
		sub := iter.Subscription()
		if sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing {
			return observedFromSubscription(sub), nil
		}
		if fallback == nil {
			fallback = sub
		}
	}
	if err := iter.Err(); err != nil {
		sc.log.Errorw("Stripe subscription search failed", "error", err, "tenantID", tenantID)
		return nil, domain.NewExternalServiceError("stripe", "search_failed", "subscription search failed", 0, err)
	}

	if fallback != nil {
		return observedFromSubscription(fallback), nil
	}

	sc.log.Debugw("No Stripe subscription for tenant", "tenantID", tenantID)
	return nil, ErrNoSubscription
}
