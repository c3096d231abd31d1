package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/officio/Async-billing-service/internal/api/rest/middleware"
	"github.com/officio/Async-billing-service/internal/domain"
	"github.com/officio/Async-billing-service/internal/repository"
	"github.com/officio/Async-billing-service/internal/service"
	"github.com/officio/Async-billing-service/pkg/logger"
)

// BillingHandler обработчик для состояния биллинга арендатора
type BillingHandler struct {
	billingSvc service.BillingService
	log        *logger.Logger
}

// NewBillingHandler создает новый обработчик биллинга
func NewBillingHandler(billingSvc service.BillingService, log *logger.Logger) *BillingHandler {
	return &BillingHandler{
		billingSvc: billingSvc,
		log:        log,
	}
}

// BeginCheckout фиксирует начало оформления подписки
func (h *BillingHandler) BeginCheckout(c *gin.Context) {
	tenantID, ok := middleware.TenantFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant"})
		return
	}

	state, err := h.billingSvc.BeginCheckout(c.Request.Context(), tenantID)
	if err != nil {
		h.log.Error("Failed to begin checkout for tenant %s: %v", tenantID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to begin checkout"})
		return
	}

	h.log.Info("Checkout started for tenant %s", tenantID)
	c.JSON(http.StatusCreated, state)
}

// GetState возвращает состояние биллинга арендатора
func (h *BillingHandler) GetState(c *gin.Context) {
	tenantID, ok := middleware.TenantFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant"})
		return
	}

	state, err := h.billingSvc.GetState(c.Request.Context(), tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No billing state for tenant"})
			return
		}

		h.log.Error("Failed to get billing state for tenant %s: %v", tenantID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get billing state"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"state":     state,
		"is_active": state.IsActive(time.Now()),
	})
}

// Verify выполняет ручную сверку с платежным провайдером.
// Недоступность провайдера не роняет запрос: ответ строится по
// сохраненному состоянию.
func (h *BillingHandler) Verify(c *gin.Context) {
	tenantID, ok := middleware.TenantFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant"})
		return
	}

	resp, err := h.billingSvc.Verify(c.Request.Context(), tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrProviderUnreachable) {
			h.log.Warn("Billing provider unreachable for tenant %s: %v", tenantID, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Billing provider unreachable"})
			return
		}

		h.log.Error("Failed to verify billing for tenant %s: %v", tenantID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify billing"})
		return
	}

	c.JSON(http.StatusOK, resp)
}
