package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/officio/Async-billing-service/internal/api/rest/middleware"
	"github.com/officio/Async-billing-service/internal/domain"
	"github.com/officio/Async-billing-service/internal/repository"
	"github.com/officio/Async-billing-service/internal/service"
	"github.com/officio/Async-billing-service/pkg/logger"
)

// JobHandler обработчик для отложенных задач
type JobHandler struct {
	jobSvc   service.JobService
	validate *validator.Validate
	log      *logger.Logger
}

// NewJobHandler создает новый обработчик задач
func NewJobHandler(jobSvc service.JobService, log *logger.Logger) *JobHandler {
	return &JobHandler{
		jobSvc:   jobSvc,
		validate: validator.New(),
		log:      log,
	}
}

// CreateJob ставит новую задачу в очередь
func (h *JobHandler) CreateJob(c *gin.Context) {
	tenantID, ok := middleware.TenantFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant"})
		return
	}

	var req domain.JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid job request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.log.Warn("Job request validation failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job request"})
		return
	}

	job, err := h.jobSvc.Enqueue(c.Request.Context(), tenantID, middleware.UserFromContext(c), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			h.log.Warn("Invalid job input: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job request"})
			return
		}

		// Задача не записана надежно — клиент должен знать об этом явно.
		h.log.Error("Failed to enqueue job: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to enqueue job"})
		return
	}

	h.log.Info("Enqueued job %s of type %s for tenant %s", job.ID, job.Type, tenantID)
	c.JSON(http.StatusAccepted, job)
}

// GetJob возвращает задачу по ID
func (h *JobHandler) GetJob(c *gin.Context) {
	tenantID, ok := middleware.TenantFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant"})
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.log.Warn("Invalid job ID format: %s", c.Param("id"))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format"})
		return
	}

	job, err := h.jobSvc.Get(c.Request.Context(), tenantID, jobID)
	if err != nil {
		// Чужая задача неотличима от несуществующей
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, domain.ErrTenantMismatch) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}

		h.log.Error("Failed to get job %s: %v", jobID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get job"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListJobs возвращает постраничный список задач арендатора
func (h *JobHandler) ListJobs(c *gin.Context) {
	tenantID, ok := middleware.TenantFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	filter := domain.JobListFilter{
		TenantID: tenantID,
		Type:     domain.JobType(c.Query("type")),
		Page:     page,
		PageSize: pageSize,
	}

	jobs, total, err := h.jobSvc.List(c.Request.Context(), filter)
	if err != nil {
		h.log.Error("Failed to list jobs for tenant %s: %v", tenantID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":      jobs,
		"total":     total,
		"page":      filter.Page,
		"page_size": filter.PageSize,
	})
}

// WaitJob блокирует запрос до терминального статуса задачи или таймаута.
// Таймаут отдается как 200 с kind=timeout: это не ошибка, задача может
// завершиться позже.
func (h *JobHandler) WaitJob(c *gin.Context) {
	tenantID, ok := middleware.TenantFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant"})
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.log.Warn("Invalid job ID format: %s", c.Param("id"))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format"})
		return
	}

	// Проверяем принадлежность задачи арендатору до начала ожидания
	if _, err := h.jobSvc.Get(c.Request.Context(), tenantID, jobID); err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, domain.ErrTenantMismatch) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}

		h.log.Error("Failed to get job %s: %v", jobID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get job"})
		return
	}

	outcome, err := h.jobSvc.WaitWithNotify(c.Request.Context(), jobID)
	if err != nil {
		if c.Request.Context().Err() != nil {
			// Клиент ушел, отвечать некому
			return
		}

		h.log.Error("Failed to wait for job %s: %v", jobID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to wait for job"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"kind":          outcome.Kind,
		"result":        outcome.Result,
		"error_message": outcome.ErrorMessage,
	})
}
