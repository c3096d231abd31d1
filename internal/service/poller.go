package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/officio/Async-billing-service/internal/domain"
	"github.com/officio/Async-billing-service/pkg/logger"
)

// Параметры опроса по умолчанию: 15 попыток по 2 секунды дают потолок в 30 секунд.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollAttempts = 15
)

// PollOutcomeKind вид исхода ожидания результата задачи
type PollOutcomeKind string

const (
	// PollCompleted воркер завершил задачу успешно
	PollCompleted PollOutcomeKind = "completed"

	// PollFailed воркер явно сообщил об ошибке
	PollFailed PollOutcomeKind = "failed"

	// PollTimeout бюджет попыток исчерпан. Это НЕ отказ: задача может
	// завершиться позже, клиент должен деградировать мягко.
	PollTimeout PollOutcomeKind = "timeout"
)

// PollOutcome результат ожидания задачи клиентом.
type PollOutcome struct {
	Kind         PollOutcomeKind
	Result       json.RawMessage
	ErrorMessage string
}

// JobReader минимальный контракт чтения задачи для поллера.
type JobReader interface {
	Get(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)
}

// Poller однопоточный кооперативный цикл ожидания одной задачи.
// Опрос не мутирует задачу и никогда не отменяет ее выполнение:
// таймаут это чисто клиентское понятие.
type Poller struct {
	reader   JobReader
	interval time.Duration
	attempts int
	log      *logger.Logger
}

// NewPoller создает новый поллер.
func NewPoller(reader JobReader, interval time.Duration, attempts int, log *logger.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if attempts <= 0 {
		attempts = DefaultPollAttempts
	}
	return &Poller{
		reader:   reader,
		interval: interval,
		attempts: attempts,
		log:      log,
	}
}

// Poll читает задачу с фиксированным интервалом до терминального статуса
// или исчерпания попыток. Отмена контекста останавливает цикл немедленно:
// больше ни одного чтения не выполняется.
func (p *Poller) Poll(ctx context.Context, jobID uuid.UUID) (PollOutcome, error) {
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return PollOutcome{}, err
		}

		job, err := p.reader.Get(ctx, jobID)
		if err != nil {
			// Разовый сбой чтения не должен убивать многосекундное ожидание:
			// ждем обычный интервал и пробуем снова
			p.log.Warnw("Transient poll read failure", "error", err, "jobID", jobID, "attempt", attempt)
		} else {
			switch job.Status {
			case domain.JobStatusCompleted:
				return PollOutcome{
					Kind:   PollCompleted,
					Result: decodeResult(job.Result),
				}, nil
			case domain.JobStatusFailed:
				return PollOutcome{
					Kind:         PollFailed,
					ErrorMessage: job.ErrorMessage,
				}, nil
			}
		}

		if attempt == p.attempts {
			break
		}
		if err := p.wait(ctx); err != nil {
			return PollOutcome{}, err
		}
	}

	p.log.Infow("Poll attempts exhausted, job may still complete later", "jobID", jobID, "attempts", p.attempts)
	return PollOutcome{Kind: PollTimeout}, nil
}

// wait ждет интервал опроса либо отмену контекста.
func (p *Poller) wait(ctx context.Context) error {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// decodeResult нормализует результат воркера. Воркеры пишут результат
// по-разному: иногда это JSON-объект, иногда JSON-строка, внутри которой
// закодирован еще один JSON. Оба варианта приводятся к одному виду.
func decodeResult(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}

	var inner string
	if err := json.Unmarshal(raw, &inner); err != nil {
		// Уже структурированный JSON
		return raw
	}

	if json.Valid([]byte(inner)) {
		return json.RawMessage(inner)
	}
	return raw
}
