package domain

import (
	"errors"
	"fmt"
)

// Application errors
var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate дубликат записи
	ErrDuplicate = errors.New("duplicate record")

	// ErrInvalidInput неверные входные данные
	ErrInvalidInput = errors.New("invalid input data")

	// ErrTenantMismatch задача принадлежит другому арендатору
	ErrTenantMismatch = errors.New("job belongs to another tenant")

	// ErrDurabilityFailure не удалось надежно сохранить задачу;
	// вызывающий обязан повторить постановку целиком
	ErrDurabilityFailure = errors.New("job could not be durably recorded")

	// ErrAlreadyClaimed задача уже захвачена другим воркером
	ErrAlreadyClaimed = errors.New("job already claimed")

	// ErrInvalidTransition недопустимый переход статуса задачи
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrProviderUnreachable платежный провайдер недоступен;
	// состояние подписки не изменено, запрос можно повторить
	ErrProviderUnreachable = errors.New("billing provider unreachable")

	// ErrSignatureInvalid подпись вебхука не прошла проверку
	ErrSignatureInvalid = errors.New("webhook signature invalid")

	// ErrReactivationRequiresNewSubscription из canceled нет пути назад:
	// реактивация возможна только с новым subscription id у провайдера
	ErrReactivationRequiresNewSubscription = errors.New("canceled tenant requires a new subscription")
)

// JobFailedError представляет явный отказ воркера с его сообщением об ошибке
type JobFailedError struct {
	JobID   string
	Message string
}

// Error реализует интерфейс error
func (e *JobFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("job %s failed", e.JobID)
	}
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Message)
}

// NewJobFailedError создает новую ошибку отказа воркера
func NewJobFailedError(jobID, message string) *JobFailedError {
	return &JobFailedError{JobID: jobID, Message: message}
}

// ExternalServiceError представляет ошибку внешнего сервиса
type ExternalServiceError struct {
	Service     string
	Code        string
	Message     string
	StatusCode  int
	OriginalErr error
}

// Error реализует интерфейс error
func (e *ExternalServiceError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("%s service error [%s]: %s: %v", e.Service, e.Code, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("%s service error [%s]: %s", e.Service, e.Code, e.Message)
}

// Unwrap возвращает оригинальную ошибку
func (e *ExternalServiceError) Unwrap() error {
	return e.OriginalErr
}

// NewExternalServiceError создает новую ошибку внешнего сервиса
func NewExternalServiceError(service, code, message string, statusCode int, err error) *ExternalServiceError {
	return &ExternalServiceError{
		Service:     service,
		Code:        code,
		Message:     message,
		StatusCode:  statusCode,
		OriginalErr: err,
	}
}
