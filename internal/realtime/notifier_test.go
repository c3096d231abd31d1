package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/officio/Async-billing-service/internal/domain"
	"github.com/officio/Async-billing-service/pkg/logger"
)

func newTestNotifier(t *testing.T) *RedisNotifier {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisNotifier(client, logger.New(logger.ERROR))
}

func TestSubscribeReceivesPublishedUpdate(t *testing.T) {
	ctx := context.Background()
	notifier := newTestNotifier(t)
	jobID := uuid.New()

	received := make(chan domain.JobSnapshot, 1)
	unsubscribe, err := notifier.Subscribe(ctx, jobID, func(snapshot domain.JobSnapshot) {
		select {
		case received <- snapshot:
		default:
		}
	})
	require.NoError(t, err)
	defer unsubscribe()

	snapshot := domain.JobSnapshot{
		ID:     jobID,
		Status: domain.JobStatusCompleted,
		Result: json.RawMessage(`{"invoice_id":"inv-1"}`),
	}
	require.NoError(t, notifier.PublishJobUpdate(ctx, snapshot))

	select {
	case got := <-received:
		assert.Equal(t, jobID, got.ID)
		assert.Equal(t, domain.JobStatusCompleted, got.Status)
		assert.JSONEq(t, `{"invoice_id":"inv-1"}`, string(got.Result))
	case <-time.After(2 * time.Second):
		t.Fatal("update not delivered")
	}
}

func TestSubscribeIsScopedToOneJob(t *testing.T) {
	ctx := context.Background()
	notifier := newTestNotifier(t)
	jobID := uuid.New()
	otherJobID := uuid.New()

	received := make(chan domain.JobSnapshot, 1)
	unsubscribe, err := notifier.Subscribe(ctx, jobID, func(snapshot domain.JobSnapshot) {
		received <- snapshot
	})
	require.NoError(t, err)
	defer unsubscribe()

	// Обновление чужой задачи не доставляется
	require.NoError(t, notifier.PublishJobUpdate(ctx, domain.JobSnapshot{
		ID:     otherJobID,
		Status: domain.JobStatusCompleted,
	}))

	select {
	case got := <-received:
		t.Fatalf("unexpected delivery for job %s", got.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	notifier := newTestNotifier(t)
	jobID := uuid.New()

	received := make(chan domain.JobSnapshot, 4)
	unsubscribe, err := notifier.Subscribe(ctx, jobID, func(snapshot domain.JobSnapshot) {
		received <- snapshot
	})
	require.NoError(t, err)

	unsubscribe()
	// Повторная отписка безопасна
	unsubscribe()

	require.NoError(t, notifier.PublishJobUpdate(ctx, domain.JobSnapshot{
		ID:     jobID,
		Status: domain.JobStatusCompleted,
	}))

	select {
	case <-received:
		t.Fatal("delivery after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPublishWithoutSubscribersIsFine(t *testing.T) {
	ctx := context.Background()
	notifier := newTestNotifier(t)

	// Никто не ждет задачу: публикация уходит в пустоту без ошибки
	err := notifier.PublishJobUpdate(ctx, domain.JobSnapshot{
		ID:     uuid.New(),
		Status: domain.JobStatusFailed,
	})
	assert.NoError(t, err)
}
