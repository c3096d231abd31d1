package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/officio/Async-billing-service/internal/domain"
	"github.com/officio/Async-billing-service/pkg/logger"
)

// WorkerNotifier отправляет воркеру уведомление о новой задаче.
// Канал best-effort: сбой уведомления логируется и никогда не
// превращается в ошибку постановки — воркер сам сканирует очередь.
type WorkerNotifier interface {
	NotifyJobCreated(ctx context.Context, notification domain.WorkerNotification) error
}

// Config конфигурация HTTP-клиента воркера
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPWorkerClient реализует WorkerNotifier поверх HTTP.
type HTTPWorkerClient struct {
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

// NewHTTPWorkerClient создает новый HTTP-клиент воркера.
func NewHTTPWorkerClient(cfg Config, log *logger.Logger) *HTTPWorkerClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &HTTPWorkerClient{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

// NotifyJobCreated отправляет воркеру POST с данными задачи.
// Контракта на ответ нет: не-2xx и сетевые ошибки только логируются.
func (c *HTTPWorkerClient) NotifyJobCreated(ctx context.Context, notification domain.WorkerNotification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal worker notification: %w", err)
	}

	url := c.baseURL + "/jobs"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build worker request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify worker: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("worker returned status %d", resp.StatusCode)
	}

	c.log.Debugw("Worker notified", "jobID", notification.JobID, "type", notification.Type)
	return nil
}
