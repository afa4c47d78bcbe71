package services_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spin-miniapp-backend/internal/models"
	"spin-miniapp-backend/internal/services"
)

func setupTestRedis(t *testing.T) *services.RedisService {
	t.Helper()
	cfg := testConfig()
	cfg.RedisDB = 15

	redisService, err := services.NewRedisService(cfg)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { redisService.Close() })
	return redisService
}

func TestRedisUserSession(t *testing.T) {
	redisService := setupTestRedis(t)
	ctx := context.Background()

	session := &models.UserSession{
		SessionID: "test-session-" + models.GenerateSessionID(),
		Identity:  models.FrameIdentity{FID: 777, Username: "tester"},
		CreatedAt: time.Now().Unix(),
	}
	require.NoError(t, redisService.StoreUserSession(ctx, session, time.Minute))

	got, err := redisService.GetUserSession(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.Identity, got.Identity)

	identity, err := redisService.Identity(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(777), identity.FID)

	require.NoError(t, redisService.DeleteUserSession(ctx, session.SessionID))
	_, err = redisService.GetUserSession(ctx, session.SessionID)
	assert.ErrorIs(t, err, services.ErrSessionNotFound)
}

func TestRedisRateLimit(t *testing.T) {
	redisService := setupTestRedis(t)
	ctx := context.Background()

	subject := "test-" + models.GenerateSessionID()
	t.Cleanup(func() { redisService.ClearRateLimit(ctx, subject, "spin") })

	for i := 0; i < 3; i++ {
		allowed, err := redisService.CheckRateLimit(ctx, subject, "spin", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i+1)
	}

	allowed, err := redisService.CheckRateLimit(ctx, subject, "spin", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRedisWebhookLog(t *testing.T) {
	redisService := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, redisService.ClearWebhookEvents(ctx))
	t.Cleanup(func() { redisService.ClearWebhookEvents(ctx) })

	for i := 0; i < services.WebhookEventsKept+5; i++ {
		require.NoError(t, redisService.RecordWebhookEvent(ctx, models.WebhookEvent{
			Type:       models.WebhookFrameAdded,
			Data:       json.RawMessage(`{"n":1}`),
			ReceivedAt: int64(i),
		}))
	}

	events, err := redisService.RecentWebhookEvents(ctx, 1000)
	require.NoError(t, err)
	require.Len(t, events, services.WebhookEventsKept)
	assert.Equal(t, int64(services.WebhookEventsKept+4), events[0].ReceivedAt)

	recent, err := redisService.RecentWebhookEvents(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}
