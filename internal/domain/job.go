package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobType тип отложенной задачи
type JobType string

const (
	JobTypeCreateInvoice  JobType = "create-invoice"
	JobTypeCreateQuote    JobType = "create-quote"
	JobTypeCreateDelivery JobType = "create-delivery"
	JobTypeSendDocument   JobType = "send-document"
)

// JobStatus статус задачи
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal сообщает, является ли статус терминальным.
// Терминальные статусы неизменяемы: повторные переходы игнорируются.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo проверяет допустимость перехода в новый статус.
// Переходы строго монотонны: pending -> processing -> {completed, failed},
// назад никогда.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing || next == JobStatusCompleted || next == JobStatusFailed
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed
	default:
		// Терминальные статусы неизменяемы
		return false
	}
}

// Job представляет собой единицу отложенной работы, выполняемой внешним воркером.
// Payload после создания не меняется; Result заполняется только при переходе
// в терминальный статус.
type Job struct {
	ID           uuid.UUID       `json:"id"`
	TenantID     uuid.UUID       `json:"tenant_id"`
	Type         JobType         `json:"type"`
	Status       JobStatus       `json:"status"`
	Payload      json.RawMessage `json:"payload"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	ClaimedBy    string          `json:"claimed_by,omitempty"`
	CreatedBy    string          `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// JobSnapshot срез состояния задачи, возвращаемый клиенту при чтении.
type JobSnapshot struct {
	ID           uuid.UUID       `json:"id"`
	Status       JobStatus       `json:"status"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// Snapshot возвращает срез состояния задачи.
func (j *Job) Snapshot() JobSnapshot {
	return JobSnapshot{
		ID:           j.ID,
		Status:       j.Status,
		Result:       j.Result,
		ErrorMessage: j.ErrorMessage,
	}
}

// JobRequest запрос на создание задачи
type JobRequest struct {
	Type    JobType         `json:"job_type" validate:"required"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// WorkerNotification уведомление, отправляемое воркеру при постановке задачи.
// Доставка best-effort: воркер также самостоятельно сканирует очередь.
type WorkerNotification struct {
	JobID    uuid.UUID       `json:"job_id"`
	TenantID uuid.UUID       `json:"tenant_id"`
	UserID   string          `json:"user_id"`
	Type     JobType         `json:"job_type"`
	Payload  json.RawMessage `json:"payload"`
}

// JobListFilter фильтр для постраничного списка задач арендатора
type JobListFilter struct {
	TenantID uuid.UUID
	Type     JobType
	Page     int
	PageSize int
}
