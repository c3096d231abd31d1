package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/officio/Async-billing-service/pkg/logger"
)

// Ключи контекста Gin для данных арендатора
const (
	ContextTenantID = "tenant_id"
	ContextUserID   = "user_id"
)

// Заголовки, проставляемые шлюзом аутентификации перед этим сервисом
const (
	headerTenantID = "X-Tenant-ID"
	headerUserID   = "X-User-ID"
)

// TenantMiddleware извлекает арендатора и пользователя из заголовков.
// Аутентификация выполняется шлюзом выше по цепочке; здесь только
// привязка запроса к арендатору — задача видна лишь внутри своего
// арендатора.
func TenantMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawTenant := c.GetHeader(headerTenantID)
		if rawTenant == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing tenant"})
			return
		}

		tenantID, err := uuid.Parse(rawTenant)
		if err != nil {
			log.Warnw("Invalid tenant id header", "value", rawTenant)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid tenant"})
			return
		}

		c.Set(ContextTenantID, tenantID)
		c.Set(ContextUserID, c.GetHeader(headerUserID))
		c.Next()
	}
}

// TenantFromContext возвращает ID арендатора текущего запроса.
func TenantFromContext(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(ContextTenantID)
	if !exists {
		return uuid.Nil, false
	}
	tenantID, ok := value.(uuid.UUID)
	return tenantID, ok
}

// UserFromContext возвращает ID пользователя текущего запроса.
func UserFromContext(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
