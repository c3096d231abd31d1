package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/officio/Async-billing-service/pkg/logger"
)

const headerWorkerSecret = "X-Worker-Secret"

// WorkerAuthMiddleware защищает внутренние маршруты воркеров общим
// секретом. Пустой секрет в конфигурации отключает проверку — удобно
// для локальной разработки, но не для продакшена.
func WorkerAuthMiddleware(secret string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		got := c.GetHeader(headerWorkerSecret)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			log.Warnw("Worker auth failed", "remote", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Next()
	}
}
