package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/officio/Async-billing-service/internal/domain"
	"github.com/officio/Async-billing-service/pkg/logger"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// WebhookParser проверяет подпись вебхука Stripe и нормализует событие.
// Поддельное событие не должно дойти до состояния: проверка подписи
// выполняется до какого-либо чтения полезной нагрузки.
type WebhookParser struct {
	secret string
	log    *logger.Logger
}

// NewWebhookParser создает новый парсер вебхуков.
func NewWebhookParser(webhookSecret string, log *logger.Logger) *WebhookParser {
	return &WebhookParser{
		secret: webhookSecret,
		log:    log,
	}
}

// VerifyAndParse проверяет криптографическую подпись события и приводит его
// к доменному виду. При неверной подписи возвращает domain.ErrSignatureInvalid.
func (p *WebhookParser) VerifyAndParse(payload []byte, signatureHeader string) (*domain.BillingEvent, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, p.secret)
	if err != nil {
		p.log.Warnw("Webhook signature verification failed", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrSignatureInvalid, err)
	}

	billingEvent := &domain.BillingEvent{
		ExternalID: event.ID,
		Type:       domain.BillingEventType(event.Type),
		Created:    time.Unix(event.Created, 0).UTC(),
	}

	switch billingEvent.Type {
	case domain.BillingEventCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("parse checkout session event: %w", err)
		}
		// ClientReferenceID несет ID арендатора, проставленный при создании checkout
		billingEvent.TenantID = session.ClientReferenceID
		if session.Subscription != nil {
			billingEvent.SubscriptionID = session.Subscription.ID
		}

	case domain.BillingEventInvoicePaid, domain.BillingEventInvoicePaymentFailed:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("parse invoice event: %w", err)
		}
		if invoice.Subscription != nil {
			billingEvent.SubscriptionID = invoice.Subscription.ID
		}

	case domain.BillingEventSubscriptionUpdated, domain.BillingEventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("parse subscription event: %w", err)
		}
		billingEvent.SubscriptionID = sub.ID
		billingEvent.TenantID = sub.Metadata[metadataTenantIDKey]
		billingEvent.Status = MapSubscriptionStatus(sub.Status)
		if sub.CurrentPeriodEnd > 0 {
			periodEnd := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
			billingEvent.CurrentPeriodEnd = &periodEnd
		}

	default:
		// Неизвестные типы не считаем ошибкой: провайдер шлет больше, чем нам нужно
		p.log.Debugw("Ignoring unhandled webhook event type", "type", event.Type)
	}

	return billingEvent, nil
}
