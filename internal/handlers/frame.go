package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"spin-miniapp-backend/internal/middleware"
	"spin-miniapp-backend/internal/models"
	"spin-miniapp-backend/internal/services"
)

type EventLog interface {
	RecordWebhookEvent(ctx context.Context, event models.WebhookEvent) error
	RecentWebhookEvents(ctx context.Context, limit int64) ([]models.WebhookEvent, error)
}

// FrameHandler serves the stateless frame protocol endpoints and the host's
// lifecycle webhook.
type FrameHandler struct {
	appURL  string
	events  EventLog
	limiter middleware.RateLimiter
	logger  *zap.Logger
	metrics *services.Metrics
}

func NewFrameHandler(appURL string, events EventLog, limiter middleware.RateLimiter, logger *zap.Logger, metrics *services.Metrics) *FrameHandler {
	return &FrameHandler{
		appURL:  strings.TrimRight(appURL, "/"),
		events:  events,
		limiter: limiter,
		logger:  logger,
		metrics: metrics,
	}
}

func (h *FrameHandler) url(path string) string {
	return h.appURL + path
}

func (h *FrameHandler) Manifest(c *gin.Context) {
	c.JSON(http.StatusOK, models.FrameManifest{
		Name:        "Monad Spin Game",
		Icon:        h.url("/icon.png"),
		Description: "Spin to win MONAD tokens with DEGEN!",
		HomeURL:     h.url("/"),
		ImageURL:    h.url("/frame-image.png"),
	})
}

func (h *FrameHandler) Action(c *gin.Context) {
	var req models.FrameActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("frame request decode failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if req.UntrustedData == nil || req.TrustedData == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid frame data"})
		return
	}

	fid := req.TrustedData.FID
	if fid == 0 {
		fid = req.UntrustedData.FID
	}

	if h.limiter != nil {
		allowed, err := h.limiter.CheckRateLimit(c.Request.Context(), "fid:"+strconv.FormatInt(fid, 10), "frame", services.DefaultRateLimitFrame, time.Minute)
		if err != nil {
			h.logger.Warn("frame rate limit check failed", zap.Error(err))
		} else if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
	}

	h.metrics.FrameAction()
	h.logger.Info("frame interaction",
		zap.Int64("fid", fid),
		zap.Int("button_index", req.UntrustedData.ButtonIndex),
		zap.Int64("timestamp", req.UntrustedData.Timestamp),
		zap.String("url", req.UntrustedData.URL),
	)

	c.JSON(http.StatusOK, models.FrameResponse{
		Image: h.url("/frame-image.png"),
		Buttons: []models.FrameButton{
			{Label: "🎰 Play Now", Action: "link", Target: h.url("/")},
		},
		PostURL:     h.url("/api/frame"),
		AspectRatio: "1.91:1",
	})
}

func (h *FrameHandler) Webhook(c *gin.Context) {
	var event models.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		h.logger.Error("webhook decode failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook processing failed"})
		return
	}

	h.logger.Info("webhook received",
		zap.String("type", string(event.Type)),
		zap.ByteString("data", event.Data),
	)

	switch event.Type {
	case models.WebhookFrameAdded:
		h.logger.Info("frame added to user's collection")
	case models.WebhookFrameRemoved:
		h.logger.Info("frame removed from user's collection")
	case models.WebhookNotificationCreated:
		h.logger.Info("notification created")
	default:
		h.logger.Info("unknown webhook type", zap.String("type", string(event.Type)))
	}

	label := string(event.Type)
	if !event.Known() {
		label = "unknown"
	}
	h.metrics.WebhookEvent(label)

	event.ReceivedAt = time.Now().Unix()
	if h.events != nil {
		if err := h.events.RecordWebhookEvent(c.Request.Context(), event); err != nil {
			h.logger.Warn("failed to record webhook event", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *FrameHandler) RecentEvents(c *gin.Context) {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	if err != nil || limit <= 0 {
		limit = 20
	}

	if h.events == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "events": []models.WebhookEvent{}, "count": 0})
		return
	}

	events, err := h.events.RecentWebhookEvents(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to fetch webhook events",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"events":  events,
		"count":   len(events),
	})
}
