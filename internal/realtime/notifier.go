package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/officio/Async-billing-service/internal/domain"
	"github.com/officio/Async-billing-service/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const jobChannelPrefix = "job_updates:"

// Publisher публикует изменения состояния задачи подписчикам.
type Publisher interface {
	PublishJobUpdate(ctx context.Context, snapshot domain.JobSnapshot) error
}

// Subscriber подписывается на изменения ровно одной задачи.
// Контракт: ровно один Subscribe и ровно один вызов возвращенной
// функции отписки на одно логическое ожидание, иначе канал утекает.
type Subscriber interface {
	Subscribe(ctx context.Context, jobID uuid.UUID, fn func(domain.JobSnapshot)) (func(), error)
}

// RedisNotifier реализует Publisher и Subscriber поверх Redis pub/sub.
// Каждая задача получает собственный канал job_updates:<id>.
type RedisNotifier struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisNotifier создает новый нотификатор поверх Redis.
func NewRedisNotifier(client *redis.Client, log *logger.Logger) *RedisNotifier {
	return &RedisNotifier{
		client: client,
		log:    log,
	}
}

// channelFor возвращает имя канала для задачи.
func channelFor(jobID uuid.UUID) string {
	return fmt.Sprintf("%s%s", jobChannelPrefix, jobID)
}

// PublishJobUpdate публикует снимок состояния задачи в ее канал.
func (n *RedisNotifier) PublishJobUpdate(ctx context.Context, snapshot domain.JobSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal job snapshot: %w", err)
	}

	if err := n.client.Publish(ctx, channelFor(snapshot.ID), data).Err(); err != nil {
		return fmt.Errorf("publish job update: %w", err)
	}

	n.log.Debugw("Job update published", "jobID", snapshot.ID, "status", snapshot.Status)
	return nil
}

// Subscribe подписывается на изменения одной задачи и вызывает fn на каждое
// событие. Возвращает функцию отписки; ее вызов закрывает подписку и
// останавливает горутину доставки. Повторные вызовы отписки безопасны.
func (n *RedisNotifier) Subscribe(ctx context.Context, jobID uuid.UUID, fn func(domain.JobSnapshot)) (func(), error) {
	pubsub := n.client.Subscribe(ctx, channelFor(jobID))

	// Дожидаемся подтверждения подписки, чтобы не потерять ранние события
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe to job channel: %w", err)
	}

	done := make(chan struct{})
	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var snapshot domain.JobSnapshot
				if err := json.Unmarshal([]byte(msg.Payload), &snapshot); err != nil {
					n.log.Warnw("Failed to decode job update", "error", err, "jobID", jobID)
					continue
				}
				fn(snapshot)
			}
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			close(done)
			if err := pubsub.Close(); err != nil {
				n.log.Warnw("Failed to close job subscription", "error", err, "jobID", jobID)
			}
		})
	}
	return unsubscribe, nil
}
