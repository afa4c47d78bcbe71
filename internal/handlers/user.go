package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"spin-miniapp-backend/internal/middleware"
	"spin-miniapp-backend/internal/models"
	"spin-miniapp-backend/internal/services"
)

type SessionStore interface {
	StoreUserSession(ctx context.Context, session *models.UserSession, expiry time.Duration) error
	DeleteUserSession(ctx context.Context, sessionID string) error
}

type AuthHandler struct {
	sessions   SessionStore
	jwtService *services.JWTService
	logger     *zap.Logger
}

func NewAuthHandler(sessions SessionStore, jwtService *services.JWTService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		sessions:   sessions,
		jwtService: jwtService,
		logger:     logger,
	}
}

// Authenticate opens a play session for the viewer the frame host reported.
// The body is optional; without it the placeholder viewer is used.
func (h *AuthHandler) Authenticate(c *gin.Context) {
	var reported *models.FrameIdentity

	var body models.FrameIdentity
	if err := c.ShouldBindJSON(&body); err != nil {
		if !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request",
				"details": err.Error(),
			})
			return
		}
	} else {
		reported = &body
	}

	identity := models.NormalizeIdentity(reported)
	inFrame := reported != nil && reported.FID > 0

	session := &models.UserSession{
		SessionID: models.GenerateSessionID(),
		Identity:  identity,
		CreatedAt: time.Now().Unix(),
	}

	if err := h.sessions.StoreUserSession(c.Request.Context(), session, h.jwtService.TTL()); err != nil {
		h.logger.Error("failed to store session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	token, expiresAt, err := h.jwtService.GenerateToken(session.SessionID, identity.FID)
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"token":      token,
		"expires_at": expiresAt,
		"user":       identity,
		"in_frame":   inFrame,
	})
}

type UserHandler struct {
	players  *services.PlayerRegistry
	sessions SessionStore
	logger   *zap.Logger
}

func NewUserHandler(players *services.PlayerRegistry, sessions SessionStore, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		players:  players,
		sessions: sessions,
		logger:   logger,
	}
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	player, ok := resolvePlayer(c, h.players)
	if !ok {
		return
	}

	snapshot := player.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"user":     snapshot.Identity,
		"score":    snapshot.Score,
		"spins":    snapshot.Spins,
		"spinning": snapshot.Spinning,
		"wallet":   snapshot.Wallet.Response(),
	})
}

func (h *UserHandler) Logout(c *gin.Context) {
	sessionID := c.GetString(middleware.ContextSessionID)
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session not found"})
		return
	}

	if err := h.sessions.DeleteUserSession(c.Request.Context(), sessionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}
	h.players.Remove(sessionID)

	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

func resolvePlayer(c *gin.Context, players *services.PlayerRegistry) (*services.Player, bool) {
	sessionID := c.GetString(middleware.ContextSessionID)
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, false
	}

	player, err := players.Resolve(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load player",
			"details": err.Error(),
		})
		return nil, false
	}
	return player, true
}
