package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/officio/Async-billing-service/internal/domain"
	"github.com/officio/Async-billing-service/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// Топики жизненного цикла, публикуемые сервисом
const (
	TopicJobCreated          = "job_created"
	TopicJobCompleted        = "job_completed"
	TopicSubscriptionUpdated = "subscription_updated"
)

// Producer определяет интерфейс для публикации событий жизненного цикла.
// Публикация best-effort: вызывающие логируют сбой и продолжают работу.
type Producer interface {
	// PublishJobEvent отправляет событие, связанное с задачей.
	// Ключ сообщения — JobID, чтобы события одной задачи попадали
	// в одну партицию и сохраняли порядок.
	PublishJobEvent(ctx context.Context, topic string, job *domain.Job) error

	// PublishSubscriptionEvent отправляет событие изменения биллинга.
	// Ключ сообщения — TenantID.
	PublishSubscriptionEvent(ctx context.Context, topic string, state *domain.SubscriptionState) error

	// Close закрывает соединение продюсера Kafka.
	Close() error
}

// kafkaProducer реализует интерфейс Producer, используя segmentio/kafka-go.
type kafkaProducer struct {
	writer *kafka.Writer
	log    *logger.Logger
}

// NewKafkaProducer создает и настраивает новый продюсер Kafka.
func NewKafkaProducer(brokers []string, log *logger.Logger) (Producer, error) {
	if len(brokers) == 0 {
		log.Errorw("Kafka brokers list is empty in config, cannot create producer")
		return nil, errors.New("kafka brokers are not configured")
	}

	// RequiredAcks: kafka.RequireOne — подтверждение только от лидера партиции.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	log.Infow("Kafka producer initialized", "brokers", brokers)

	return &kafkaProducer{
		writer: writer,
		log:    log,
	}, nil
}

// PublishJobEvent преобразует задачу в JSON и отправляет в указанный топик.
func (k *kafkaProducer) PublishJobEvent(ctx context.Context, topic string, job *domain.Job) error {
	messageValue, err := json.Marshal(job)
	if err != nil {
		k.log.Errorw("Failed to marshal job for Kafka", "error", err, "jobID", job.ID, "topic", topic)
		return fmt.Errorf("kafka: failed to marshal message data: %w", err)
	}

	return k.write(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(job.ID.String()),
		Value: messageValue,
		Time:  time.Now(),
	})
}

// PublishSubscriptionEvent преобразует состояние биллинга в JSON и отправляет в топик.
func (k *kafkaProducer) PublishSubscriptionEvent(ctx context.Context, topic string, state *domain.SubscriptionState) error {
	messageValue, err := json.Marshal(state)
	if err != nil {
		k.log.Errorw("Failed to marshal subscription state for Kafka", "error", err, "tenantID", state.TenantID, "topic", topic)
		return fmt.Errorf("kafka: failed to marshal message data: %w", err)
	}

	return k.write(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(state.TenantID.String()),
		Value: messageValue,
		Time:  time.Now(),
	})
}

// write отправляет сообщение с таймаутом записи.
func (k *kafkaProducer) write(ctx context.Context, message kafka.Message) error {
	writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	err := k.writer.WriteMessages(writeCtx, message)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			k.log.Errorw("Kafka write timeout exceeded", "error", err, "topic", message.Topic)
			return fmt.Errorf("kafka: write timeout: %w", err)
		}
		k.log.Errorw("Failed to write message to Kafka", "error", err, "topic", message.Topic)
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	k.log.Debugw("Message published to Kafka", "topic", message.Topic, "key", string(message.Key))
	return nil
}

// Close закрывает соединение Kafka Writer.
// Важно вызвать при завершении работы приложения (graceful shutdown).
func (k *kafkaProducer) Close() error {
	k.log.Infow("Closing Kafka producer writer...")
	err := k.writer.Close()
	if err != nil {
		k.log.Errorw("Failed to close Kafka writer", "error", err)
		return fmt.Errorf("kafka: failed to close writer: %w", err)
	}
	return nil
}

// NopProducer продюсер-заглушка для окружений без Kafka.
type NopProducer struct{}

// PublishJobEvent ничего не делает.
func (NopProducer) PublishJobEvent(ctx context.Context, topic string, job *domain.Job) error {
	return nil
}

// PublishSubscriptionEvent ничего не делает.
func (NopProducer) PublishSubscriptionEvent(ctx context.Context, topic string, state *domain.SubscriptionState) error {
	return nil
}

// Close ничего не делает.
func (NopProducer) Close() error { return nil }
