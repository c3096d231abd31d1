package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/officio/Async-billing-service/internal/domain"
	"github.com/officio/Async-billing-service/internal/repository"
	"github.com/officio/Async-billing-service/internal/service"
	"github.com/officio/Async-billing-service/pkg/logger"
)

// WorkerHandler обработчик внутренних маршрутов воркеров
type WorkerHandler struct {
	jobSvc service.JobService
	log    *logger.Logger
}

// NewWorkerHandler создает новый обработчик воркеров
func NewWorkerHandler(jobSvc service.JobService, log *logger.Logger) *WorkerHandler {
	return &WorkerHandler{
		jobSvc: jobSvc,
		log:    log,
	}
}

// claimRequest запрос воркера на захват задачи
type claimRequest struct {
	WorkerID string `json:"worker_id" binding:"required"`
}

// resultRequest терминальный результат выполнения задачи от воркера
type resultRequest struct {
	Status       domain.JobStatus `json:"status" binding:"required"`
	Result       json.RawMessage  `json:"result"`
	ErrorMessage string           `json:"error_message"`
}

// ClaimJob атомарно захватывает задачу для воркера.
// Из двух конкурирующих воркеров ровно один получает 200,
// остальные — 409.
func (h *WorkerHandler) ClaimJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.log.Warn("Invalid job ID format: %s", c.Param("id"))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format"})
		return
	}

	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid claim request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.jobSvc.Claim(c.Request.Context(), jobID, req.WorkerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}

		if errors.Is(err, domain.ErrAlreadyClaimed) {
			h.log.Warn("Job %s already claimed, worker %s lost the race", jobID, req.WorkerID)
			c.JSON(http.StatusConflict, gin.H{"error": "Job already claimed"})
			return
		}

		h.log.Error("Failed to claim job %s: %v", jobID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to claim job"})
		return
	}

	h.log.Info("Job %s claimed by worker %s", jobID, req.WorkerID)
	c.JSON(http.StatusOK, job)
}

// SubmitResult применяет терминальный результат задачи.
// Повторная доставка того же результата идемпотентна и отвечает 200.
func (h *WorkerHandler) SubmitResult(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.log.Warn("Invalid job ID format: %s", c.Param("id"))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format"})
		return
	}

	var req resultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid result request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.jobSvc.ApplyWorkerResult(c.Request.Context(), jobID, req.Status, req.Result, req.ErrorMessage)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}

		if errors.Is(err, domain.ErrInvalidTransition) {
			h.log.Warn("Invalid result status %s for job %s", req.Status, jobID)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Result status must be terminal"})
			return
		}

		h.log.Error("Failed to apply result for job %s: %v", jobID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply job result"})
		return
	}

	h.log.Info("Job %s finished with status %s", jobID, job.Status)
	c.JSON(http.StatusOK, job)
}
