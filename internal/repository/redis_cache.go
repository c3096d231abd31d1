package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/officio/Async-billing-service/internal/domain"
	"github.com/officio/Async-billing-service/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	// Префиксы ключей для различных типов данных
	subscriptionStateKeyPrefix = "subscription_state:"

	// TTL для кэша
	defaultCacheTTL = 15 * time.Minute
)

// RedisCacheRepository реализует кеширование состояний биллинга в Redis.
type RedisCacheRepository struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCacheRepository создает новый экземпляр Redis репозитория.
func NewRedisCacheRepository(redisAddr, redisPassword string, redisDB int, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	// Проверяем соединение с Redis
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", redisAddr)
	return &RedisCacheRepository{
		client: client,
		log:    log,
	}, nil
}

// NewRedisCacheRepositoryWithClient создает репозиторий поверх готового клиента.
func NewRedisCacheRepositoryWithClient(client *redis.Client, log *logger.Logger) *RedisCacheRepository {
	return &RedisCacheRepository{client: client, log: log}
}

// Close закрывает соединение с Redis.
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

// CacheSubscriptionState кеширует состояние биллинга арендатора.
func (r *RedisCacheRepository) CacheSubscriptionState(ctx context.Context, state *domain.SubscriptionState) error {
	key := fmt.Sprintf("%s%s", subscriptionStateKeyPrefix, state.TenantID)

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription state: %w", err)
	}

	if err := r.client.Set(ctx, key, data, defaultCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache subscription state: %w", err)
	}

	r.log.Debugw("Subscription state cached", "tenantID", state.TenantID)
	return nil
}

// GetCachedSubscriptionState возвращает состояние из кеша либо nil, если его нет.
func (r *RedisCacheRepository) GetCachedSubscriptionState(ctx context.Context, tenantID uuid.UUID) (*domain.SubscriptionState, error) {
	key := fmt.Sprintf("%s%s", subscriptionStateKeyPrefix, tenantID)

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscription state from cache: %w", err)
	}

	var state domain.SubscriptionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached subscription state: %w", err)
	}

	return &state, nil
}

// InvalidateSubscriptionState удаляет состояние арендатора из кеша.
func (r *RedisCacheRepository) InvalidateSubscriptionState(ctx context.Context, tenantID uuid.UUID) error {
	key := fmt.Sprintf("%s%s", subscriptionStateKeyPrefix, tenantID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate subscription state cache: %w", err)
	}
	return nil
}
