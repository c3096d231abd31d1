package stripe

import (
	"time"

	"github.com/officio/Async-billing-service/internal/domain"
	"github.com/stripe/stripe-go/v78"
)

// MapSubscriptionStatus переводит статус Stripe в доменный статус.
// Неизвестные и истекшие статусы схлопываются в canceled.
func MapSubscriptionStatus(status stripe.SubscriptionStatus) domain.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive:
		return domain.SubscriptionStatusActive
	case stripe.SubscriptionStatusTrialing:
		return domain.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusPastDue:
		return domain.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusIncomplete:
		return domain.SubscriptionStatusIncomplete
	default:
		// canceled, unpaid, incomplete_expired, paused
		return domain.SubscriptionStatusCanceled
	}
}

// observedFromSubscription строит наблюдаемую истину из подписки Stripe.
func observedFromSubscription(sub *stripe.Subscription) *domain.ObservedSubscription {
	observed := &domain.ObservedSubscription{
		Status:         MapSubscriptionStatus(sub.Status),
		SubscriptionID: sub.ID,
	}
	if sub.CurrentPeriodEnd > 0 {
		periodEnd := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		observed.CurrentPeriodEnd = &periodEnd
	}
	return observed
}
