package domain

import "time"

// BillingEventType тип события от платежного провайдера
type BillingEventType string

const (
	BillingEventCheckoutCompleted    BillingEventType = "checkout.session.completed"
	BillingEventInvoicePaid          BillingEventType = "invoice.paid"
	BillingEventInvoicePaymentFailed BillingEventType = "invoice.payment_failed"
	BillingEventSubscriptionUpdated  BillingEventType = "customer.subscription.updated"
	BillingEventSubscriptionDeleted  BillingEventType = "customer.subscription.deleted"
)

// BillingEvent нормализованное событие биллинга после проверки подписи.
// Провайдер может доставлять события повторно, поэтому обработка обязана
// быть идемпотентной: каждый переход это "установить значение", не "инкремент".
type BillingEvent struct {
	ExternalID       string             // ID события у провайдера
	Type             BillingEventType   // Тип события
	TenantID         string             // Арендатор, к которому относится событие
	SubscriptionID   string             // Внешний ID подписки
	Status           SubscriptionStatus // Статус подписки по данным провайдера
	CurrentPeriodEnd *time.Time         // Конец текущего оплаченного периода
	Created          time.Time          // Время создания события у провайдера
}
