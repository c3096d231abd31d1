package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"

	"github.com/officio/Async-billing-service/internal/domain"
	"github.com/officio/Async-billing-service/pkg/logger"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload строит заголовок Stripe-Signature для тестового payload.
func signPayload(secret string, payload []byte, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts.Unix(), payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload(eventType, dataObject string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_test_1",
		"type": %q,
		"created": %d,
		"api_version": %q,
		"data": {"object": %s}
	}`, eventType, time.Now().Unix(), stripe.APIVersion, dataObject))
}

func TestVerifyAndParseRejectsInvalidSignature(t *testing.T) {
	parser := NewWebhookParser(testWebhookSecret, logger.New(logger.ERROR))
	payload := eventPayload("invoice.paid", `{"id":"in_1"}`)

	// Подпись другим секретом
	header := signPayload("whsec_wrong_secret", payload, time.Now())
	_, err := parser.VerifyAndParse(payload, header)
	assert.ErrorIs(t, err, domain.ErrSignatureInvalid)

	// Мусор вместо заголовка
	_, err = parser.VerifyAndParse(payload, "t=123,v1=deadbeef")
	assert.ErrorIs(t, err, domain.ErrSignatureInvalid)

	// Пустой заголовок
	_, err = parser.VerifyAndParse(payload, "")
	assert.ErrorIs(t, err, domain.ErrSignatureInvalid)
}

func TestVerifyAndParseRejectsTamperedPayload(t *testing.T) {
	parser := NewWebhookParser(testWebhookSecret, logger.New(logger.ERROR))
	payload := eventPayload("invoice.paid", `{"id":"in_1"}`)
	header := signPayload(testWebhookSecret, payload, time.Now())

	tampered := eventPayload("invoice.paid", `{"id":"in_EVIL"}`)
	_, err := parser.VerifyAndParse(tampered, header)
	assert.ErrorIs(t, err, domain.ErrSignatureInvalid)
}

func TestVerifyAndParseCheckoutCompleted(t *testing.T) {
	parser := NewWebhookParser(testWebhookSecret, logger.New(logger.ERROR))
	tenantID := uuid.New()

	payload := eventPayload("checkout.session.completed", fmt.Sprintf(
		`{"id":"cs_1","client_reference_id":%q,"subscription":{"id":"sub_1"}}`, tenantID))
	header := signPayload(testWebhookSecret, payload, time.Now())

	event, err := parser.VerifyAndParse(payload, header)
	require.NoError(t, err)
	assert.Equal(t, domain.BillingEventCheckoutCompleted, event.Type)
	assert.Equal(t, tenantID.String(), event.TenantID)
	assert.Equal(t, "sub_1", event.SubscriptionID)
}

func TestVerifyAndParseSubscriptionUpdated(t *testing.T) {
	parser := NewWebhookParser(testWebhookSecret, logger.New(logger.ERROR))
	tenantID := uuid.New()
	periodEnd := time.Now().Add(30 * 24 * time.Hour).Unix()

	payload := eventPayload("customer.subscription.updated", fmt.Sprintf(
		`{"id":"sub_1","status":"past_due","current_period_end":%d,"metadata":{"tenant_id":%q}}`,
		periodEnd, tenantID))
	header := signPayload(testWebhookSecret, payload, time.Now())

	event, err := parser.VerifyAndParse(payload, header)
	require.NoError(t, err)
	assert.Equal(t, domain.BillingEventSubscriptionUpdated, event.Type)
	assert.Equal(t, domain.SubscriptionStatusPastDue, event.Status)
	assert.Equal(t, tenantID.String(), event.TenantID)
	require.NotNil(t, event.CurrentPeriodEnd)
	assert.Equal(t, periodEnd, event.CurrentPeriodEnd.Unix())
}

func TestVerifyAndParseUnknownEventType(t *testing.T) {
	parser := NewWebhookParser(testWebhookSecret, logger.New(logger.ERROR))

	payload := eventPayload("customer.created", `{"id":"cus_1"}`)
	header := signPayload(testWebhookSecret, payload, time.Now())

	// Неизвестный тип не ошибка: сервис подтверждает и игнорирует его
	event, err := parser.VerifyAndParse(payload, header)
	require.NoError(t, err)
	assert.Equal(t, domain.BillingEventType("customer.created"), event.Type)
}
