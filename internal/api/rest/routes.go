package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/officio/Async-billing-service/internal/api/rest/handlers"
	"github.com/officio/Async-billing-service/internal/api/rest/middleware"
	"github.com/officio/Async-billing-service/internal/config"
	"github.com/officio/Async-billing-service/internal/integration/stripe"
	"github.com/officio/Async-billing-service/internal/service"
	"github.com/officio/Async-billing-service/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps зависимости маршрутизатора
type RouterDeps struct {
	JobService     service.JobService
	BillingService service.BillingService
	WebhookService service.WebhookService
	WebhookParser  *stripe.WebhookParser
	Registry       *prometheus.Registry
	Config         *config.Config
	Log            *logger.Logger
}

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Подключение middleware
	r.Use(middleware.LoggerMiddleware(deps.Log))
	r.Use(gin.Recovery())

	// Endpoint для проверки работоспособности сервиса
	r.GET("/health", handlers.HealthCheck)

	// Prometheus метрики
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))

	// Инициализация обработчиков
	jobHandler := handlers.NewJobHandler(deps.JobService, deps.Log)
	workerHandler := handlers.NewWorkerHandler(deps.JobService, deps.Log)
	billingHandler := handlers.NewBillingHandler(deps.BillingService, deps.Log)
	webhookHandler := handlers.NewWebhookHandler(deps.WebhookParser, deps.WebhookService, deps.Log)

	// Клиентский API: все маршруты привязаны к арендатору
	v1 := r.Group("/api/v1")
	v1.Use(middleware.TenantMiddleware(deps.Log))
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.CreateJob)
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/:id", jobHandler.GetJob)
			jobs.GET("/:id/wait", jobHandler.WaitJob)
		}

		billing := v1.Group("/billing")
		{
			billing.POST("/checkout", billingHandler.BeginCheckout)
			billing.GET("/state", billingHandler.GetState)
			billing.POST("/verify", billingHandler.Verify)
		}
	}

	// Внутренний API воркеров, защищен общим секретом
	internal := r.Group("/internal/v1/worker")
	internal.Use(middleware.WorkerAuthMiddleware(deps.Config.Worker.SharedSecret, deps.Log))
	{
		internal.POST("/jobs/:id/claim", workerHandler.ClaimJob)
		internal.POST("/jobs/:id/result", workerHandler.SubmitResult)
	}

	// Вебхуки на корневом уровне роутера: провайдер не знает про арендаторов
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/stripe", webhookHandler.HandleStripeWebhook)
	}

	return r
}
