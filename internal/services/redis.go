package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"spin-miniapp-backend/internal/config"
	"spin-miniapp-backend/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// RedisService keeps short-lived request plumbing: session records, rate
// limit counters and the recent webhook log. Scores and balances never go
// here.
type RedisService struct {
	client *redis.Client
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisService{client: client}, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

func (s *RedisService) StoreUserSession(ctx context.Context, session *models.UserSession, expiry time.Duration) error {
	key := fmt.Sprintf(KeyUserSession, session.SessionID)

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	return s.client.Set(ctx, key, data, expiry).Err()
}

func (s *RedisService) GetUserSession(ctx context.Context, sessionID string) (*models.UserSession, error) {
	key := fmt.Sprintf(KeyUserSession, sessionID)

	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.UserSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *RedisService) DeleteUserSession(ctx context.Context, sessionID string) error {
	key := fmt.Sprintf(KeyUserSession, sessionID)
	return s.client.Del(ctx, key).Err()
}

// Identity implements IdentityLookup.
func (s *RedisService) Identity(ctx context.Context, sessionID string) (*models.FrameIdentity, error) {
	session, err := s.GetUserSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &session.Identity, nil
}

func (s *RedisService) CheckRateLimit(ctx context.Context, subject, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, subject, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

func (s *RedisService) ClearRateLimit(ctx context.Context, subject, action string) error {
	key := fmt.Sprintf(KeyRateLimit, subject, action)
	return s.client.Del(ctx, key).Err()
}

func (s *RedisService) RecordWebhookEvent(ctx context.Context, event models.WebhookEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, KeyWebhookEvents, data)
	pipe.LTrim(ctx, KeyWebhookEvents, 0, WebhookEventsKept-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisService) RecentWebhookEvents(ctx context.Context, limit int64) ([]models.WebhookEvent, error) {
	if limit <= 0 || limit > WebhookEventsKept {
		limit = WebhookEventsKept
	}

	items, err := s.client.LRange(ctx, KeyWebhookEvents, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook events: %w", err)
	}

	events := make([]models.WebhookEvent, 0, len(items))
	for _, item := range items {
		var ev models.WebhookEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (s *RedisService) ClearWebhookEvents(ctx context.Context) error {
	return s.client.Del(ctx, KeyWebhookEvents).Err()
}
