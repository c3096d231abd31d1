package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/officio/Async-billing-service/internal/domain"
	"github.com/officio/Async-billing-service/internal/integration/stripe"
	"github.com/officio/Async-billing-service/internal/service"
	"github.com/officio/Async-billing-service/pkg/logger"
)

// WebhookHandler обработчик вебхуков платежного провайдера
type WebhookHandler struct {
	parser     *stripe.WebhookParser
	webhookSvc service.WebhookService
	log        *logger.Logger
}

// NewWebhookHandler создает новый обработчик вебхуков
func NewWebhookHandler(parser *stripe.WebhookParser, webhookSvc service.WebhookService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		parser:     parser,
		webhookSvc: webhookSvc,
		log:        log,
	}
}

// HandleStripeWebhook обрабатывает вебхуки от Stripe.
// Подпись проверяется до любого чтения или изменения состояния;
// событие с невалидной подписью отбрасывается целиком.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Error("Failed to read webhook body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read webhook body"})
		return
	}

	event, err := h.parser.VerifyAndParse(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, domain.ErrSignatureInvalid) {
			h.log.Warn("Webhook signature verification failed: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook signature"})
			return
		}

		h.log.Error("Failed to parse webhook: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse webhook"})
		return
	}

	if err := h.webhookSvc.ProcessEvent(c.Request.Context(), event); err != nil {
		h.log.Error("Failed to process webhook event %s: %v", event.Type, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process webhook event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
