package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus статус биллинга арендатора
type SubscriptionStatus string

const (
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
)

// DefaultGracePeriod окно, в течение которого арендатор со статусом past_due
// сохраняет доступ в ожидании повторного списания.
const DefaultGracePeriod = 3 * 24 * time.Hour

// SubscriptionState представляет состояние биллинга одного арендатора.
// Запись живет все время жизни арендатора и никогда не удаляется,
// только переводится в canceled.
type SubscriptionState struct {
	TenantID               uuid.UUID          `json:"tenant_id" db:"tenant_id"`
	Status                 SubscriptionStatus `json:"status" db:"status"`
	ExternalSubscriptionID string             `json:"external_subscription_id" db:"external_subscription_id"`
	CurrentPeriodEnd       *time.Time         `json:"current_period_end,omitempty" db:"current_period_end"`
	GracePeriodUntil       *time.Time         `json:"grace_period_until,omitempty" db:"grace_period_until"`
	CreatedAt              time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at" db:"updated_at"`
}

// IsActive вычисляет доступность арендатора как чистую функцию статуса.
// Никакого скрытого состояния: active и trialing активны всегда,
// past_due активен только внутри grace-периода.
func (s *SubscriptionState) IsActive(now time.Time) bool {
	switch s.Status {
	case SubscriptionStatusActive, SubscriptionStatusTrialing:
		return true
	case SubscriptionStatusPastDue:
		return s.GracePeriodUntil != nil && now.Before(*s.GracePeriodUntil)
	default:
		return false
	}
}

// ObservedSubscription наблюдаемая истина от платежного провайдера.
// Единственный источник переходов SubscriptionState: и вебхук, и ручная
// сверка сводятся к применению этой структуры.
type ObservedSubscription struct {
	Status           SubscriptionStatus
	SubscriptionID   string
	CurrentPeriodEnd *time.Time
	GracePeriodUntil *time.Time
}

// BillingVerifyRequest запрос ручной сверки биллинга
type BillingVerifyRequest struct {
	TenantID string `json:"tenant_id" validate:"required,uuid4"`
}

// BillingVerifyResponse результат ручной сверки биллинга
type BillingVerifyResponse struct {
	IsActive           bool               `json:"is_active"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
}
